// Package metrics exposes control-loop observations as Prometheus metrics.
package metrics

import "time"

// Recorder receives per-cycle observations. Implementations must tolerate a
// nil receiver.
type Recorder interface {
	ObserveCycle(branch string, pumpOn bool, d time.Duration)
	ObserveReadings(soil int, humidityPct, temperatureC float64, waterPresent bool)
	IncSensorFault(sensor string)
	IncTelemetry(result string)
	IncMirror(mirror string, success bool)
	SetConnectivity(connected, timeSynced bool)
}

// NoopRecorder drops everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveCycle(string, bool, time.Duration)    {}
func (NoopRecorder) ObserveReadings(int, float64, float64, bool) {}
func (NoopRecorder) IncSensorFault(string)                       {}
func (NoopRecorder) IncTelemetry(string)                         {}
func (NoopRecorder) IncMirror(string, bool)                      {}
func (NoopRecorder) SetConnectivity(bool, bool)                  {}
