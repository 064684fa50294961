package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"irrigation-node/internal/config"
	"irrigation-node/internal/hw"
)

type fixedCounts struct {
	n   int
	err error
}

func (f fixedCounts) Counts() (int, error) { return f.n, f.err }

type fixedActive bool

func (f fixedActive) Active() bool { return bool(f) }

func TestAnalogLDR_Threshold(t *testing.T) {
	tests := []struct {
		counts int
		dark   bool
	}{
		{counts: 100, dark: false},
		{counts: 2800, dark: false},
		{counts: 2801, dark: true},
		{counts: 4095, dark: true},
	}
	for _, tt := range tests {
		l, err := NewAnalogLDR(fixedCounts{n: tt.counts}, 2800).Sample()
		require.NoError(t, err)
		assert.Equal(t, tt.counts, l.Level)
		assert.Equal(t, tt.dark, l.Dark, "counts=%d", tt.counts)
	}
}

func TestDigitalDetector(t *testing.T) {
	l, err := NewDigitalDetector(fixedActive(true)).Sample()
	require.NoError(t, err)
	assert.Equal(t, Light{Level: 1, Dark: true}, l)

	l, err = NewDigitalDetector(fixedActive(false)).Sample()
	require.NoError(t, err)
	assert.Equal(t, Light{Level: 0, Dark: false}, l)
}

func TestNoLight_NotAware(t *testing.T) {
	var s LightSensor = NoLight{}
	assert.False(t, s.Aware())
	assert.True(t, NewAnalogLDR(fixedCounts{}, 0).Aware())
	assert.True(t, NewDigitalDetector(fixedActive(false)).Aware())
}

func TestNewLightSensor_MatchesBoard(t *testing.T) {
	for _, variant := range []string{config.LightNone, config.LightLDR, config.LightDigital} {
		b := hw.NewSimBoard(variant)
		ls, err := NewLightSensor(config.Config{LightSensor: variant, DarkThreshold: 2800}, b.Board)
		require.NoError(t, err, variant)
		assert.Equal(t, variant != config.LightNone, ls.Aware(), variant)
	}

	// A board built without the channel cannot back an LDR.
	b := hw.NewSimBoard(config.LightNone)
	_, err := NewLightSensor(config.Config{LightSensor: config.LightLDR}, b.Board)
	assert.Error(t, err)
}

func TestReader_SimBoardSnapshot(t *testing.T) {
	b := hw.NewSimBoard(config.LightDigital)
	b.SoilADC.Set(1650*physic.MilliVolt, nil)
	b.WaterPin.L = gpio.Low
	b.LightPin.L = gpio.High
	b.EnvDev.Set(18.25, 61.5, nil)

	ls, err := NewLightSensor(config.Config{LightSensor: config.LightDigital}, b.Board)
	require.NoError(t, err)
	snap := NewBoardReader(b.Board, ls).Read()

	assert.Equal(t, 2047, snap.SoilMoisture)
	assert.True(t, snap.WaterPresent)
	assert.True(t, snap.Dark)
	assert.True(t, snap.LightAware)
	assert.Equal(t, 1, snap.Light)
	assert.InDelta(t, 18.25, snap.TemperatureC, 0.001)
	assert.InDelta(t, 61.5, snap.HumidityPct, 0.001)
	assert.Empty(t, snap.Faults)
}

func TestReader_FailedReadsBecomeZero(t *testing.T) {
	b := hw.NewSimBoard(config.LightNone)
	b.SoilADC.Set(0, errors.New("adc gone"))
	b.EnvDev.Set(0, 0, errors.New("bme280 gone"))
	b.WaterPin.L = gpio.High

	snap := NewBoardReader(b.Board, NoLight{}).Read()

	assert.Equal(t, 0, snap.SoilMoisture)
	assert.Zero(t, snap.TemperatureC)
	assert.Zero(t, snap.HumidityPct)
	assert.False(t, snap.WaterPresent)
	assert.False(t, snap.LightAware)
	assert.Equal(t, []string{"soil", "env"}, snap.Faults)
}
