package hw

import (
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"irrigation-node/internal/config"
)

// SimSample is a settable analog source for the sim backend and tests.
type SimSample struct {
	mu  sync.Mutex
	v   physic.ElectricPotential
	err error
}

func NewSimSample(v physic.ElectricPotential) *SimSample { return &SimSample{v: v} }

func (s *SimSample) Set(v physic.ElectricPotential, err error) {
	s.mu.Lock()
	s.v, s.err = v, err
	s.mu.Unlock()
}

func (s *SimSample) Read() (analog.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return analog.Sample{}, s.err
	}
	return analog.Sample{V: s.v}, nil
}

// SimEnv is a settable temperature/humidity source.
type SimEnv struct {
	mu  sync.Mutex
	env physic.Env
	err error
}

func NewSimEnv(tempC float64, humidityPct float64) *SimEnv {
	s := &SimEnv{}
	s.Set(tempC, humidityPct, nil)
	return s
}

func (s *SimEnv) Set(tempC float64, humidityPct float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env.Temperature = physic.Temperature(tempC*float64(physic.Celsius)) + physic.ZeroCelsius
	s.env.Humidity = physic.RelativeHumidity(humidityPct * float64(physic.PercentRH))
	s.err = err
}

func (s *SimEnv) Sense(env *physic.Env) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	*env = s.env
	return nil
}

// SimBoard exposes the fake pins behind a sim Board so tests can inspect and
// drive them.
type SimBoard struct {
	*Board
	PumpPin  *gpiotest.Pin
	LEDPin   *gpiotest.Pin
	WaterPin *gpiotest.Pin
	LightPin *gpiotest.Pin
	SoilADC  *SimSample
	LightADC *SimSample
	EnvDev   *SimEnv
}

// NewSimBoard returns a board with in-memory pins: reservoir full, soil dry,
// dark, 21.5°C / 55%rH.
func NewSimBoard(lightSensor string) *SimBoard {
	s := &SimBoard{
		PumpPin:  &gpiotest.Pin{N: "SIM_PUMP", L: gpio.High},
		LEDPin:   &gpiotest.Pin{N: "SIM_LED", L: gpio.Low},
		WaterPin: &gpiotest.Pin{N: "SIM_WATER", L: gpio.Low},
		LightPin: &gpiotest.Pin{N: "SIM_LIGHT", L: gpio.High},
		SoilADC:  NewSimSample(1200 * physic.MilliVolt),
		LightADC: NewSimSample(2600 * physic.MilliVolt),
		EnvDev:   NewSimEnv(21.5, 55),
	}
	b := &Board{
		Pump: NewOutput("pump", s.PumpPin, true),
		LED:  NewOutput("led", s.LEDPin, false),
		Soil: NewAnalogChannel("soil", s.SoilADC, 3300*physic.MilliVolt),
		Env:  s.EnvDev,
	}
	// gpiotest pins never fail In().
	b.Water, _ = NewInput("water", s.WaterPin, gpio.PullUp, true)
	switch lightSensor {
	case config.LightDigital:
		b.LightDO, _ = NewInput("light", s.LightPin, gpio.Float, false)
	case config.LightLDR:
		b.Light = NewAnalogChannel("light", s.LightADC, 3300*physic.MilliVolt)
	}
	s.Board = b
	return s
}

// OpenSim returns a sim board for running without hardware.
func OpenSim(cfg config.Config) *Board {
	b := NewSimBoard(cfg.LightSensor).Board
	slog.Warn("using simulated hardware", "light_sensor", cfg.LightSensor, "peripherals", b.Peripherals())
	return b
}
