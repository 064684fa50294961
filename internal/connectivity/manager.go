// Package connectivity associates the node with a network, keeps wall time in
// sync and recovers the link when it drops. Manager is the only writer of the
// connection flags.
package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"irrigation-node/internal/config"
)

// ErrNoNetwork means every candidate network was tried without success.
var ErrNoNetwork = errors.New("no candidate network could be joined")

var errNotAssociated = errors.New("not associated")

// State is a copy of the connection flags.
type State struct {
	Connected        bool
	TimeSynchronized bool
}

type Options struct {
	Networks     []config.Network
	PollInterval time.Duration
	MaxPolls     int
}

type Manager struct {
	station Station
	clock   *Clock
	opts    Options

	mu    sync.RWMutex
	state State
}

func NewManager(station Station, clock *Clock, opts Options) *Manager {
	if opts.MaxPolls < 1 {
		opts.MaxPolls = 1
	}
	return &Manager{station: station, clock: clock, opts: opts}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Clock() *Clock { return m.clock }

// Connect tries the candidate networks in order and stops at the first one
// that comes up, then syncs time. A time sync failure does not fail Connect.
// With no candidates configured, an already-up station counts as connected.
func (m *Manager) Connect(ctx context.Context) error {
	if len(m.opts.Networks) == 0 {
		if m.station.Connected(ctx) {
			m.markConnected("")
			m.syncAfterConnect(ctx)
			return nil
		}
		m.markDisconnected()
		slog.Warn("no networks configured and link is down, running offline")
		return ErrNoNetwork
	}

	for _, n := range m.opts.Networks {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Info("joining network", "ssid", n.SSID)
		if err := m.station.Associate(ctx, n); err != nil {
			slog.Warn("association failed", "ssid", n.SSID, "error", err)
			continue
		}
		if err := m.waitLink(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("network did not come up", "ssid", n.SSID, "polls", m.opts.MaxPolls)
			continue
		}
		m.markConnected(n.SSID)
		m.syncAfterConnect(ctx)
		return nil
	}

	m.markDisconnected()
	slog.Warn("all candidate networks failed, running offline", "candidates", len(m.opts.Networks))
	return ErrNoNetwork
}

// waitLink polls the station up to MaxPolls times with a fixed delay.
func (m *Manager) waitLink(ctx context.Context) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.PollInterval), uint64(m.opts.MaxPolls-1)),
		ctx,
	)
	return backoff.Retry(func() error {
		if m.station.Connected(ctx) {
			return nil
		}
		return errNotAssociated
	}, b)
}

// Check compares the live link with the last known flag. When the link is
// down it re-runs Connect from the first candidate.
func (m *Manager) Check(ctx context.Context) error {
	live := m.station.Connected(ctx)
	was := m.State().Connected
	switch {
	case live && was:
		return nil
	case live && !was:
		m.markConnected("")
		return nil
	case was:
		slog.Warn("network connection lost")
		m.markDisconnected()
	}
	return m.Connect(ctx)
}

// SyncTime queries the time source and records the outcome in the
// TimeSynchronized flag.
func (m *Manager) SyncTime(ctx context.Context) error {
	err := m.clock.Sync(ctx)
	m.mu.Lock()
	m.state.TimeSynchronized = err == nil
	m.mu.Unlock()
	if err != nil {
		slog.Warn("time sync failed, keeping previous clock", "error", err)
		return err
	}
	slog.Info("time synchronized", "now", m.clock.Now().Format(time.RFC3339))
	return nil
}

// EnsureTime syncs only when connected and not yet synchronized.
func (m *Manager) EnsureTime(ctx context.Context) error {
	s := m.State()
	if !s.Connected || s.TimeSynchronized {
		return nil
	}
	return m.SyncTime(ctx)
}

func (m *Manager) syncAfterConnect(ctx context.Context) {
	_ = m.SyncTime(ctx)
}

func (m *Manager) markConnected(ssid string) {
	m.mu.Lock()
	m.state.Connected = true
	m.mu.Unlock()
	if ssid != "" {
		slog.Info("network connected", "ssid", ssid)
	} else {
		slog.Info("network connected")
	}
}

func (m *Manager) markDisconnected() {
	m.mu.Lock()
	m.state.Connected = false
	m.mu.Unlock()
}
