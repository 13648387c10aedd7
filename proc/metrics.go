package proc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for procedure execution
// monitoring. All metrics are namespaced "labproc_":
//
//   - inflight_steps (gauge): steps currently executing their body.
//   - queue_depth (gauge, labels: queue): tasks scheduled so far per
//     queue tag at the current level. The empty tag is exported as
//     "unqueued".
//   - step_latency_ms (histogram, labels: step, status): body duration
//     in milliseconds; status is success, stop or error.
//   - lock_wait_ms (histogram, labels: lock): time spent waiting for a
//     named lock set, attributed to each lock in the set.
//   - stops_total (counter): cooperative stop signals recorded.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := proc.NewMetrics(registry)
//	exec := proc.NewExecutor(p, proc.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are safe on a nil receiver, so the engine never guards
// its call sites.
type Metrics struct {
	inflight    prometheus.Gauge
	depth       *prometheus.GaugeVec
	stepLatency *prometheus.HistogramVec
	lockWaitMs  *prometheus.HistogramVec
	stops       prometheus.Counter
}

// NewMetrics creates and registers the execution metrics with the
// given registry. Pass prometheus.DefaultRegisterer for the global
// registry, or a fresh registry for isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "labproc",
			Name:      "inflight_steps",
			Help:      "Current number of steps executing their body",
		}),
		depth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "labproc",
			Name:      "queue_depth",
			Help:      "Tasks scheduled per queue tag at the current level",
		}, []string{"queue"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labproc",
			Name:      "step_latency_ms",
			Help:      "Step body duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"step", "status"}),
		lockWaitMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labproc",
			Name:      "lock_wait_ms",
			Help:      "Time spent waiting to acquire a named resource lock",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"lock"}),
		stops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "labproc",
			Name:      "stops_total",
			Help:      "Cooperative stop signals recorded",
		}),
	}
}

func (m *Metrics) stepStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) stepFinished(step string, sig Signal, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case sig == Stop:
		status = "stop"
	}
	m.stepLatency.WithLabelValues(step, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) queueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	if queue == "" {
		queue = "unqueued"
	}
	m.depth.WithLabelValues(queue).Set(float64(depth))
}

func (m *Metrics) lockWait(locks []string, d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	for _, l := range locks {
		m.lockWaitMs.WithLabelValues(l).Observe(ms)
	}
}

func (m *Metrics) stopRecorded() {
	if m == nil {
		return
	}
	m.stops.Inc()
}
