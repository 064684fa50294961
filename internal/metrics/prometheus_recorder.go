package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "irrigation"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	cycles        *prom.CounterVec
	pumpRuns      prom.Counter
	cycleDuration prom.Histogram
	soil          prom.Gauge
	humidity      prom.Gauge
	temperature   prom.Gauge
	water         prom.Gauge
	sensorFaults  *prom.CounterVec
	telemetry     *prom.CounterVec
	mirrors       *prom.CounterVec
	connected     prom.Gauge
	timeSynced    prom.Gauge
}

// NewPrometheusRecorder registers the node's collectors on reg. A nil reg
// gets a fresh registry with the Go and process collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	pr := &PrometheusRecorder{
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed control cycles by decision branch",
		}, []string{"branch"}),
		pumpRuns: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pump_activations_total",
			Help:      "Cycles in which the pump was energized",
		}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one control cycle, including pump hold and upload",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30, 60},
		}),
		soil: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_moisture_counts",
			Help:      "Last soil probe reading in 12-bit counts (higher is drier)",
		}),
		humidity: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last relative humidity reading",
		}),
		temperature: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last air temperature reading",
		}),
		water: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "reservoir_water_present",
			Help:      "1 when the float switch reports water",
		}),
		sensorFaults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_faults_total",
			Help:      "Failed sensor reads by source",
		}, []string{"sensor"}),
		telemetry: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_uploads_total",
			Help:      "Dashboard upload outcomes",
		}, []string{"result"}),
		mirrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_publishes_total",
			Help:      "Cycle mirror publish outcomes",
		}, []string{"mirror", "result"}),
		connected: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "network_connected",
			Help:      "1 while the node is associated with a network",
		}),
		timeSynced: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "time_synchronized",
			Help:      "1 after a successful time sync",
		}),
	}
	reg.MustRegister(
		pr.cycles, pr.pumpRuns, pr.cycleDuration,
		pr.soil, pr.humidity, pr.temperature, pr.water,
		pr.sensorFaults, pr.telemetry, pr.mirrors,
		pr.connected, pr.timeSynced,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveCycle(branch string, pumpOn bool, d time.Duration) {
	if p == nil {
		return
	}
	p.cycles.WithLabelValues(branch).Inc()
	if pumpOn {
		p.pumpRuns.Inc()
	}
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveReadings(soil int, humidityPct, temperatureC float64, waterPresent bool) {
	if p == nil {
		return
	}
	p.soil.Set(float64(soil))
	p.humidity.Set(humidityPct)
	p.temperature.Set(temperatureC)
	p.water.Set(boolFloat(waterPresent))
}

func (p *PrometheusRecorder) IncSensorFault(sensor string) {
	if p == nil {
		return
	}
	p.sensorFaults.WithLabelValues(sensor).Inc()
}

func (p *PrometheusRecorder) IncTelemetry(result string) {
	if p == nil {
		return
	}
	p.telemetry.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncMirror(mirror string, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.mirrors.WithLabelValues(mirror, res).Inc()
}

func (p *PrometheusRecorder) SetConnectivity(connected, timeSynced bool) {
	if p == nil {
		return
	}
	p.connected.Set(boolFloat(connected))
	p.timeSynced.Set(boolFloat(timeSynced))
}

// HTTPHandler serves reg in the Prometheus exposition format.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
