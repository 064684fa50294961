// Package hw wraps the board peripherals: relay and LED outputs, the reservoir
// float switch, the ADC channels and the temperature/humidity sensor.
package hw

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Output is a digital output with a fixed polarity.
type Output struct {
	name      string
	pin       gpio.PinOut
	activeLow bool
}

// NewOutput wraps pin. When activeLow is set, "on" drives the pin LOW.
func NewOutput(name string, pin gpio.PinOut, activeLow bool) *Output {
	return &Output{name: name, pin: pin, activeLow: activeLow}
}

// Set drives the pin to the level that means on or off for this output.
func (o *Output) Set(on bool) error {
	level := gpio.Level(on)
	if o.activeLow {
		level = !level
	}
	if err := o.pin.Out(level); err != nil {
		return fmt.Errorf("%s out %s: %w", o.name, level, err)
	}
	return nil
}

func (o *Output) Name() string { return o.name }

// Input is a digital input with a fixed polarity.
type Input struct {
	name      string
	pin       gpio.PinIn
	activeLow bool
}

// NewInput configures pin as an input with the given pull. When activeLow is
// set, a LOW reading means active.
func NewInput(name string, pin gpio.PinIn, pull gpio.Pull, activeLow bool) (*Input, error) {
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("%s in: %w", name, err)
	}
	return &Input{name: name, pin: pin, activeLow: activeLow}, nil
}

// Active reports whether the input is asserted.
func (i *Input) Active() bool {
	level := i.pin.Read()
	if i.activeLow {
		return level == gpio.Low
	}
	return level == gpio.High
}

func (i *Input) Name() string { return i.name }
