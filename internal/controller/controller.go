// Package controller runs the control loop: one cycle of sense, decide,
// actuate and report, then a fixed delay.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"irrigation-node/internal/connectivity"
	"irrigation-node/internal/irrigation"
	"irrigation-node/internal/journal"
	"irrigation-node/internal/metrics"
	"irrigation-node/internal/sensor"
	"irrigation-node/internal/telemetry"
)

type Sensors interface {
	Read() sensor.Snapshot
}

// Actuator drives the pins for a decision and reports whether the pump was
// actually energized.
type Actuator interface {
	Apply(d irrigation.Decision) (bool, error)
}

// Network is the connectivity manager as seen by the loop.
type Network interface {
	Check(ctx context.Context) error
	EnsureTime(ctx context.Context) error
	State() connectivity.State
}

// Clock is the NTP-corrected wall clock. It stamps cycles and picks the hour.
type Clock interface {
	Now() time.Time
}

type Reporter interface {
	Report(ctx context.Context, r telemetry.Reading) telemetry.Result
}

type Journal interface {
	InsertCycle(ctx context.Context, c journal.Cycle) (int64, error)
}

type Mirrors interface {
	Publish(ctx context.Context, c journal.Cycle)
}

// Deps are the loop's collaborators. Journal, Mirrors and Metrics may be nil.
type Deps struct {
	Sensors  Sensors
	Actuator Actuator
	Network  Network
	Clock    Clock
	Reporter Reporter
	Journal  Journal
	Mirrors  Mirrors
	Metrics  metrics.Recorder
}

type Options struct {
	Params   irrigation.Params
	Interval time.Duration
	RunID    string
}

type Controller struct {
	deps Deps
	opts Options
	// now measures cycle duration; timestamps come from deps.Clock.
	now func() time.Time

	mu   sync.RWMutex
	last *journal.Cycle
}

func New(deps Deps, opts Options) *Controller {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopRecorder{}
	}
	return &Controller{deps: deps, opts: opts, now: time.Now}
}

// Run executes cycles until ctx is done. The delay between cycles is fixed
// and starts after a cycle finishes, so a pump hold or slow upload stretches
// the period.
func (c *Controller) Run(ctx context.Context) error {
	slog.Info("control loop started", "interval", c.opts.Interval, "run_id", c.opts.RunID)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("control loop stopped")
			return nil
		case <-timer.C:
		}
		c.Cycle(ctx)
		timer.Reset(c.opts.Interval)
	}
}

// Cycle runs one full iteration and returns its record. No step failure
// aborts the cycle; the pins are always driven.
func (c *Controller) Cycle(ctx context.Context) journal.Cycle {
	started := c.now()

	if err := c.deps.Network.Check(ctx); err != nil {
		slog.Warn("offline this cycle", "error", err)
	}
	_ = c.deps.Network.EnsureTime(ctx)
	state := c.deps.Network.State()
	c.deps.Metrics.SetConnectivity(state.Connected, state.TimeSynchronized)

	snap := c.deps.Sensors.Read()
	for _, f := range snap.Faults {
		c.deps.Metrics.IncSensorFault(f)
	}
	c.deps.Metrics.ObserveReadings(snap.SoilMoisture, snap.HumidityPct, snap.TemperatureC, snap.WaterPresent)

	// Read after the time sync so the stamp and the hour use the same offset.
	stamp := c.deps.Clock.Now()
	hour := stamp.Hour()
	d := irrigation.Decide(irrigation.Inputs{
		SoilMoisture: snap.SoilMoisture,
		WaterPresent: snap.WaterPresent,
		Hour:         hour,
		LightAware:   snap.LightAware,
		Dark:         snap.Dark,
	}, c.opts.Params)
	slog.Info("decision", "branch", d.Branch, "pump", d.PumpOn, "pattern", d.Pattern, "hour", hour)

	pumpRan, err := c.deps.Actuator.Apply(d)
	if err != nil {
		slog.Error("actuator failed", "branch", d.Branch, "pump_ran", pumpRan, "error", err)
	}

	result := c.deps.Reporter.Report(ctx, telemetry.Reading{
		Light:        snap.Light,
		SoilMoisture: snap.SoilMoisture,
		HumidityPct:  snap.HumidityPct,
		TemperatureC: snap.TemperatureC,
		PumpOn:       pumpRan,
		WaterPresent: snap.WaterPresent,
	})
	c.deps.Metrics.IncTelemetry(string(result))

	took := c.now().Sub(started)
	rec := journal.Cycle{
		RunID:        c.opts.RunID,
		StartedAt:    stamp.UTC(),
		Duration:     journal.Millis(took),
		Hour:         hour,
		Branch:       string(d.Branch),
		Pattern:      string(d.Pattern),
		PumpOn:       pumpRan,
		SoilMoisture: snap.SoilMoisture,
		WaterPresent: snap.WaterPresent,
		Light:        snap.Light,
		Dark:         snap.Dark,
		LightAware:   snap.LightAware,
		HumidityPct:  snap.HumidityPct,
		TemperatureC: snap.TemperatureC,
		Connected:    state.Connected,
		TimeSynced:   state.TimeSynchronized,
		Telemetry:    string(result),
		Faults:       snap.Faults,
	}

	if c.deps.Journal != nil {
		id, err := c.deps.Journal.InsertCycle(ctx, rec)
		if err != nil {
			slog.Error("journal write failed", "error", err)
		} else {
			rec.ID = id
		}
	}
	if c.deps.Mirrors != nil {
		c.deps.Mirrors.Publish(ctx, rec)
	}
	c.deps.Metrics.ObserveCycle(rec.Branch, rec.PumpOn, took)

	c.mu.Lock()
	c.last = &rec
	c.mu.Unlock()
	return rec
}

// Last returns the most recent cycle record, if any.
func (c *Controller) Last() (journal.Cycle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return journal.Cycle{}, false
	}
	return *c.last, true
}
