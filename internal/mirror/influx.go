package mirror

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"irrigation-node/internal/config"
	"irrigation-node/internal/journal"
)

const measurement = "irrigation_cycle"

// Influx writes one point per cycle to an InfluxDB v2 bucket.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	deviceID string
}

func NewInflux(cfg config.Config) (*Influx, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, errors.New("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		deviceID: cfg.DeviceID,
	}, nil
}

func (i *Influx) Name() string { return "influx" }

func (i *Influx) Publish(ctx context.Context, c journal.Cycle) error {
	if err := i.writeAPI.WritePoint(ctx, cyclePoint(i.deviceID, c)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

func (i *Influx) Close() error {
	i.client.Close()
	return nil
}

func cyclePoint(deviceID string, c journal.Cycle) *write.Point {
	tags := map[string]string{
		"device": deviceID,
		"branch": c.Branch,
	}
	fields := map[string]any{
		"soil_moisture": c.SoilMoisture,
		"humidity_pct":  c.HumidityPct,
		"temperature_c": c.TemperatureC,
		"light":         c.Light,
		"dark":          c.Dark,
		"pump_on":       c.PumpOn,
		"water_present": c.WaterPresent,
		"connected":     c.Connected,
		"duration_ms":   int64(c.Duration) / 1e6,
		"telemetry":     c.Telemetry,
	}
	return influxdb2.NewPoint(measurement, tags, fields, c.StartedAt)
}
