package sensor

import (
	"fmt"

	"irrigation-node/internal/config"
	"irrigation-node/internal/hw"
)

// Light is one light observation. Level is what gets reported to the
// dashboard: raw counts for an LDR, 0/1 for a digital detector.
type Light struct {
	Level int
	Dark  bool
}

// LightSensor answers "is it dark". Aware is false for nodes without a light
// sensor, in which case the darkness condition never gates watering.
type LightSensor interface {
	Sample() (Light, error)
	Aware() bool
}

// CountsReader is an analog channel scaled to 12-bit counts.
type CountsReader interface {
	Counts() (int, error)
}

// ActiveReader is a digital input with polarity already applied.
type ActiveReader interface {
	Active() bool
}

// AnalogLDR reads an LDR divider; higher counts mean darker.
type AnalogLDR struct {
	ch        CountsReader
	threshold int
}

func NewAnalogLDR(ch CountsReader, darkThreshold int) *AnalogLDR {
	return &AnalogLDR{ch: ch, threshold: darkThreshold}
}

func (l *AnalogLDR) Sample() (Light, error) {
	n, err := l.ch.Counts()
	if err != nil {
		return Light{}, err
	}
	return Light{Level: n, Dark: n > l.threshold}, nil
}

func (l *AnalogLDR) Aware() bool { return true }

// DigitalDetector reads a comparator module output that is asserted when dark.
type DigitalDetector struct {
	in ActiveReader
}

func NewDigitalDetector(in ActiveReader) *DigitalDetector {
	return &DigitalDetector{in: in}
}

func (d *DigitalDetector) Sample() (Light, error) {
	if d.in.Active() {
		return Light{Level: 1, Dark: true}, nil
	}
	return Light{Level: 0, Dark: false}, nil
}

func (d *DigitalDetector) Aware() bool { return true }

// NoLight is used when the node has no light sensor.
type NoLight struct{}

func (NoLight) Sample() (Light, error) { return Light{}, nil }

func (NoLight) Aware() bool { return false }

// NewLightSensor picks the implementation for the configured variant.
func NewLightSensor(cfg config.Config, b *hw.Board) (LightSensor, error) {
	switch cfg.LightSensor {
	case config.LightLDR:
		if b.Light == nil {
			return nil, fmt.Errorf("light sensor %q: no analog channel on board", cfg.LightSensor)
		}
		return NewAnalogLDR(b.Light, cfg.DarkThreshold), nil
	case config.LightDigital:
		if b.LightDO == nil {
			return nil, fmt.Errorf("light sensor %q: no digital input on board", cfg.LightSensor)
		}
		return NewDigitalDetector(b.LightDO), nil
	default:
		return NoLight{}, nil
	}
}
