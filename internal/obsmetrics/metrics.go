// Package obsmetrics exposes the control plane's Prometheus metrics:
// tick duration, queue depth, and a per-equipment status histogram
// labeled by equipment kind, location, and outcome status.
//
// Grounded on the assessment service's internal/observability/metrics.go
// — one struct of pre-registered vectors built at startup via
// prometheus.MustRegister, with small typed recording methods rather
// than exposing the raw vectors.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every control-plane gauge/counter/histogram.
type Metrics struct {
	tickDuration    prometheus.Histogram
	tickWorkingSet  prometheus.Gauge
	tickDispatched  prometheus.Gauge
	tickEnqueued    prometheus.Gauge
	queueDepth      *prometheus.GaugeVec
	equipmentStatus *prometheus.HistogramVec
	jobsTotal       *prometheus.CounterVec
}

// New builds and registers the control plane's metrics against reg. A
// nil reg registers against prometheus.DefaultRegisterer, matching the
// teacher's package-level MustRegister call.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestrator_tick_duration_seconds",
			Help:    "Duration of one orchestrator tick.",
			Buckets: prometheus.DefBuckets,
		}),
		tickWorkingSet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_tick_working_set",
			Help: "Size of the working set built by the most recent tick.",
		}),
		tickDispatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_tick_dispatched",
			Help: "Equipment dispatched synchronously by the most recent tick.",
		}),
		tickEnqueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_tick_enqueued",
			Help: "Equipment handed to the per-location queue by the most recent tick.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workerpool_queue_depth",
			Help: "Approximate per-location queue depth (jobs enqueued minus completed).",
		}, []string{"locationId"}),
		equipmentStatus: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "equipment_run_duration_seconds",
			Help:    "Duration of one equipment control invocation by kind and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "locationId", "status"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ui_command_jobs_total",
			Help: "UI command jobs processed, by terminal status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.tickDuration,
		m.tickWorkingSet,
		m.tickDispatched,
		m.tickEnqueued,
		m.queueDepth,
		m.equipmentStatus,
		m.jobsTotal,
	)
	return m
}

// ObserveTick records one orchestrator tick's shape, called from
// cmd/controlplane's ticker loop after every internal/orchestrator.Tick.
func (m *Metrics) ObserveTick(duration time.Duration, workingSet, dispatched, enqueued int) {
	m.tickDuration.Observe(duration.Seconds())
	m.tickWorkingSet.Set(float64(workingSet))
	m.tickDispatched.Set(float64(dispatched))
	m.tickEnqueued.Set(float64(enqueued))
}

// SetQueueDepth records one location's current queue depth.
func (m *Metrics) SetQueueDepth(locationID string, depth int) {
	m.queueDepth.WithLabelValues(locationID).Set(float64(depth))
}

// ObserveEquipmentRun records one equipment invocation's duration and
// outcome, called from internal/workerpool.RunEquipment.
func (m *Metrics) ObserveEquipmentRun(kind, locationID, status string, duration time.Duration) {
	m.equipmentStatus.WithLabelValues(kind, locationID, status).Observe(duration.Seconds())
}

// ObserveJobTerminal increments the UI-command job counter for one
// terminal status (completed or failed), called from internal/uicommand.Worker.
func (m *Metrics) ObserveJobTerminal(status string) {
	m.jobsTotal.WithLabelValues(status).Inc()
}
