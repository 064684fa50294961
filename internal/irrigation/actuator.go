package irrigation

import (
	"errors"
	"log/slog"
	"time"
)

// Switch is an on/off output with polarity handled by the implementation.
type Switch interface {
	Set(on bool) error
}

// Sleeper blocks the caller for d.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Timing holds the fixed durations of the pump hold and the blink patterns.
type Timing struct {
	PumpHold        time.Duration
	AlarmBlinks     int
	AlarmInterval   time.Duration
	WarningBlinks   int
	WarningInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		PumpHold:        10 * time.Second,
		AlarmBlinks:     10,
		AlarmInterval:   200 * time.Millisecond,
		WarningBlinks:   3,
		WarningInterval: time.Second,
	}
}

// Actuator drives the pump relay and the indicator LED for a decision.
type Actuator struct {
	pump   Switch
	led    Switch
	timing Timing
	sleep  Sleeper
}

// NewActuator returns an actuator that sleeps with time.Sleep.
func NewActuator(pump, led Switch, timing Timing) *Actuator {
	return NewActuatorWithSleeper(pump, led, timing, realSleeper{})
}

func NewActuatorWithSleeper(pump, led Switch, timing Timing, s Sleeper) *Actuator {
	return &Actuator{pump: pump, led: led, timing: timing, sleep: s}
}

// Apply executes d and reports whether the pump was energized. For
// BranchWater it blocks for the whole pump hold; the hold cannot be
// interrupted. Both outputs end every call in a defined state: pump off, LED
// off.
func (a *Actuator) Apply(d Decision) (bool, error) {
	switch d.Pattern {
	case PatternSolid:
		return a.water()
	case PatternAlarm:
		slog.Warn("soil dry and reservoir empty: refill reservoir", "branch", d.Branch)
		return false, a.blink(a.timing.AlarmBlinks, a.timing.AlarmInterval)
	case PatternWarning:
		slog.Info("soil dry, watering not allowed now", "branch", d.Branch)
		return false, a.blink(a.timing.WarningBlinks, a.timing.WarningInterval)
	default:
		slog.Info("soil moist, pump off", "branch", d.Branch)
		return false, a.rest()
	}
}

func (a *Actuator) water() (bool, error) {
	if err := a.led.Set(true); err != nil {
		slog.Error("indicator on failed", "error", err)
	}
	if err := a.pump.Set(true); err != nil {
		return false, errors.Join(err, a.rest())
	}
	slog.Info("pump on", "hold", a.timing.PumpHold)
	a.sleep.Sleep(a.timing.PumpHold)
	err := a.rest()
	slog.Info("pump off")
	return true, err
}
func (a *Actuator) blink(n int, interval time.Duration) error {
	var errs []error
	if err := a.pump.Set(false); err != nil {
		errs = append(errs, err)
	}
	for i := 0; i < n; i++ {
		if err := a.led.Set(true); err != nil {
			errs = append(errs, err)
			break
		}
		a.sleep.Sleep(interval)
		if err := a.led.Set(false); err != nil {
			errs = append(errs, err)
			break
		}
		a.sleep.Sleep(interval)
	}
	errs = append(errs, a.led.Set(false))
	return errors.Join(errs...)
}

// rest turns both outputs off, attempting both even if one fails.
func (a *Actuator) rest() error {
	return errors.Join(a.pump.Set(false), a.led.Set(false))
}
