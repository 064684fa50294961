package hw

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"irrigation-node/internal/config"
)

// EnvSensor senses temperature and humidity. *bmxx80.Dev satisfies it.
type EnvSensor interface {
	Sense(env *physic.Env) error
}

// Board groups every peripheral the controller touches.
type Board struct {
	Pump  *Output
	LED   *Output
	Water *Input

	// LightDO is the digital light detector output; nil unless LIGHT_SENSOR=digital.
	LightDO *Input
	Soil    *AnalogChannel
	// Light is the LDR divider channel; nil unless LIGHT_SENSOR=ldr.
	Light *AnalogChannel
	Env   EnvSensor

	closers []func() error
}

// Close halts devices and releases the bus.
func (b *Board) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Peripherals names the devices the board has, optional ones included only
// when present.
func (b *Board) Peripherals() []string {
	var names []string
	for _, o := range []*Output{b.Pump, b.LED} {
		if o != nil {
			names = append(names, o.Name())
		}
	}
	for _, i := range []*Input{b.Water, b.LightDO} {
		if i != nil {
			names = append(names, i.Name())
		}
	}
	for _, c := range []*AnalogChannel{b.Soil, b.Light} {
		if c != nil {
			names = append(names, c.Name())
		}
	}
	if b.Env != nil {
		names = append(names, "env")
	}
	return names
}

// Open builds the board for the configured backend.
func Open(cfg config.Config) (*Board, error) {
	switch cfg.HWBackend {
	case config.BackendSim:
		return OpenSim(cfg), nil
	default:
		return OpenPeriph(cfg)
	}
}

// OpenPeriph initialises the host drivers and opens the real peripherals.
func OpenPeriph(cfg config.Config) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	b := &Board{}
	fail := func(err error) (*Board, error) {
		_ = b.Close()
		return nil, err
	}

	pump, err := outputPin(cfg.PumpPin)
	if err != nil {
		return fail(err)
	}
	// Relay off before anything else so a restart never leaves the pump running.
	b.Pump = NewOutput("pump", pump, true)
	if err := b.Pump.Set(false); err != nil {
		return fail(err)
	}
	b.closers = append(b.closers, func() error { return b.Pump.Set(false) })

	led, err := outputPin(cfg.LEDPin)
	if err != nil {
		return fail(err)
	}
	b.LED = NewOutput("led", led, false)
	if err := b.LED.Set(false); err != nil {
		return fail(err)
	}

	water := gpioreg.ByName(cfg.WaterPin)
	if water == nil {
		return fail(fmt.Errorf("gpio %q not found", cfg.WaterPin))
	}
	if b.Water, err = NewInput("water", water, gpio.PullUp, true); err != nil {
		return fail(err)
	}

	if cfg.LightSensor == config.LightDigital {
		do := gpioreg.ByName(cfg.LightPin)
		if do == nil {
			return fail(fmt.Errorf("gpio %q not found", cfg.LightPin))
		}
		// Detector modules pull DO high when the LDR side is dark.
		if b.LightDO, err = NewInput("light", do, gpio.Float, false); err != nil {
			return fail(err)
		}
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fail(fmt.Errorf("i2c open %q: %w", cfg.I2CBus, err))
	}
	b.closers = append(b.closers, bus.Close)

	adcOpts := ads1x15.DefaultOpts
	adcOpts.I2cAddress = cfg.ADS1115Address
	adc, err := ads1x15.NewADS1115(bus, &adcOpts)
	if err != nil {
		return fail(fmt.Errorf("ads1115 %#x: %w", cfg.ADS1115Address, err))
	}
	b.closers = append(b.closers, adc.Halt)

	// 4.096V gain keeps a 3.3V divider inside the range; counts scale against 3.3V.
	soilPin, err := adc.PinForChannel(ads1x15.Channel0+ads1x15.Channel(cfg.SoilChannel), 4096*physic.MilliVolt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return fail(fmt.Errorf("ads1115 soil channel %d: %w", cfg.SoilChannel, err))
	}
	b.Soil = NewAnalogChannel("soil", soilPin, 3300*physic.MilliVolt)

	if cfg.LightSensor == config.LightLDR {
		lightPin, err := adc.PinForChannel(ads1x15.Channel0+ads1x15.Channel(cfg.LightChannel), 4096*physic.MilliVolt, 1*physic.Hertz, ads1x15.SaveEnergy)
		if err != nil {
			return fail(fmt.Errorf("ads1115 light channel %d: %w", cfg.LightChannel, err))
		}
		b.Light = NewAnalogChannel("light", lightPin, 3300*physic.MilliVolt)
	}

	env, err := bmxx80.NewI2C(bus, cfg.BME280Address, &bmxx80.DefaultOpts)
	if err != nil {
		return fail(fmt.Errorf("bme280 %#x: %w", cfg.BME280Address, err))
	}
	b.Env = env
	b.closers = append(b.closers, env.Halt)

	slog.Info("board ready",
		"pump_pin", cfg.PumpPin,
		"led_pin", cfg.LEDPin,
		"water_pin", cfg.WaterPin,
		"light_sensor", cfg.LightSensor,
		"i2c_bus", cfg.I2CBus,
		"peripherals", b.Peripherals(),
	)
	return b, nil
}

func outputPin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}
