// Package sensor turns raw peripheral reads into one snapshot per cycle.
package sensor

import (
	"log/slog"

	"periph.io/x/conn/v3/physic"

	"irrigation-node/internal/hw"
)

// Snapshot is everything the loop knows about the garden for one cycle.
type Snapshot struct {
	Light        int
	Dark         bool
	LightAware   bool
	SoilMoisture int
	HumidityPct  float64
	TemperatureC float64
	WaterPresent bool

	// Faults lists the sources whose read failed this cycle; their values are zero.
	Faults []string
}

// Reader samples all sensors. It holds no state between calls.
type Reader struct {
	soil  CountsReader
	water ActiveReader
	env   hw.EnvSensor
	light LightSensor
}

func NewReader(soil CountsReader, water ActiveReader, env hw.EnvSensor, light LightSensor) *Reader {
	return &Reader{soil: soil, water: water, env: env, light: light}
}

// NewBoardReader wires a reader to the board peripherals.
func NewBoardReader(b *hw.Board, light LightSensor) *Reader {
	return NewReader(b.Soil, b.Water, b.Env, light)
}

// Read never fails: a failed source is logged, recorded in Faults and
// reported as zero, which keeps the decision on the "not dry" side.
func (r *Reader) Read() Snapshot {
	var s Snapshot

	l, err := r.light.Sample()
	if err != nil {
		slog.Warn("light read failed", "error", err)
		s.Faults = append(s.Faults, "light")
	}
	s.Light, s.Dark, s.LightAware = l.Level, l.Dark, r.light.Aware()

	if s.SoilMoisture, err = r.soil.Counts(); err != nil {
		slog.Warn("soil read failed", "error", err)
		s.Faults = append(s.Faults, "soil")
		s.SoilMoisture = 0
	}

	var env physic.Env
	if err := r.env.Sense(&env); err != nil {
		slog.Warn("temperature/humidity read failed", "error", err)
		s.Faults = append(s.Faults, "env")
	} else {
		s.TemperatureC = env.Temperature.Celsius()
		// env.Humidity is fixed point at 0.00001%rH.
		s.HumidityPct = float64(env.Humidity) / float64(physic.PercentRH)
	}

	s.WaterPresent = r.water.Active()

	slog.Info("sensors",
		"light", s.Light,
		"dark", s.Dark,
		"soil", s.SoilMoisture,
		"humidity_pct", s.HumidityPct,
		"temperature_c", s.TemperatureC,
		"water", s.WaterPresent,
	)
	return s
}
