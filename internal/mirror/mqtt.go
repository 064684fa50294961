package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"irrigation-node/internal/config"
	"irrigation-node/internal/journal"
)

var (
	errNotConnected  = errors.New("mqtt client not connected")
	errClientStopped = errors.New("mqtt client stopped")
)

// CyclePayload is the JSON document published for each cycle.
type CyclePayload struct {
	DeviceID string `json:"device_id"`
	journal.Cycle
}

// MQTT publishes cycle records to a broker topic.
type MQTT struct {
	client    mqtt.Client
	topic     string
	deviceID  string
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTT(cfg config.Config) *MQTT {
	m := &MQTT{
		topic:    cfg.MQTTTopic,
		deviceID: cfg.DeviceID,
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		m.setConnected(true)
		slog.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.setConnected(false)
		slog.Warn("mqtt connection lost", "error", err)
	})

	m.client = mqtt.NewClient(opts)
	return m
}

func (m *MQTT) Name() string { return "mqtt" }

// Connect waits for the first broker connection. It respects ctx and Close.
// With ConnectRetry the client keeps retrying in the background after ctx ends.
func (m *MQTT) Connect(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return errClientStopped
	default:
	}
	if m.IsConnected() {
		return nil
	}

	token := m.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return errClientStopped
		default:
		}
	}
}

// Publish sends c at QoS 1, waiting for the broker ack until ctx ends.
func (m *MQTT) Publish(ctx context.Context, c journal.Cycle) error {
	if !m.IsConnected() {
		return errNotConnected
	}

	data, err := json.Marshal(CyclePayload{DeviceID: m.deviceID, Cycle: c})
	if err != nil {
		return fmt.Errorf("marshal cycle: %w", err)
	}

	token := m.client.Publish(m.topic, 1, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (m *MQTT) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected && m.client.IsConnected()
}

// Close stops the client. It is idempotent.
func (m *MQTT) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.client.Disconnect(250)
	m.setConnected(false)
	slog.Info("mqtt disconnected")
	return nil
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}
