package hw

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// CountsFullScale is the raw range the thresholds are expressed in (12-bit).
const CountsFullScale = 4095

// SampleReader is one analog channel. *ads1x15 pins satisfy it.
type SampleReader interface {
	Read() (analog.Sample, error)
}

// AnalogChannel converts samples from a reader into 12-bit counts relative to
// a reference voltage, so thresholds stay comparable across ADCs.
type AnalogChannel struct {
	name   string
	reader SampleReader
	vref   physic.ElectricPotential
}

func NewAnalogChannel(name string, r SampleReader, vref physic.ElectricPotential) *AnalogChannel {
	return &AnalogChannel{name: name, reader: r, vref: vref}
}

// Counts reads the channel and scales it to 0..CountsFullScale.
func (c *AnalogChannel) Counts() (int, error) {
	s, err := c.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("%s read: %w", c.name, err)
	}
	return toCounts(s.V, c.vref), nil
}

func (c *AnalogChannel) Name() string { return c.name }

func toCounts(v, vref physic.ElectricPotential) int {
	if vref <= 0 || v <= 0 {
		return 0
	}
	n := int64(v) * CountsFullScale / int64(vref)
	if n > CountsFullScale {
		n = CountsFullScale
	}
	return int(n)
}
