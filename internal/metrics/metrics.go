// Package metrics exposes the run-time counters and histograms the engine
// and schedulers update, registered against a caller-supplied Prometheus
// registry (or the default global one if none is given).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow metrics surface the scheduler/executor packages
// depend on.
type Recorder struct {
	TasksTotal    *prometheus.CounterVec
	NodeDuration  prometheus.Histogram
	ActiveWorkers prometheus.Gauge
}

// Outcome labels TasksTotal.
const (
	OutcomeExecuted = "executed"
	OutcomeCached   = "cached"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// New registers the dagrunner metric family against reg and returns a
// Recorder. Passing nil registers against prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagrunner",
			Name:      "tasks_total",
			Help:      "Count of tasks by terminal outcome.",
		}, []string{"outcome"}),
		NodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dagrunner",
			Name:      "node_duration_seconds",
			Help:      "Wall-clock time spent invoking a single node's unit.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dagrunner",
			Name:      "active_workers",
			Help:      "Number of scheduler worker slots currently executing a task.",
		}),
	}

	reg.MustRegister(r.TasksTotal, r.NodeDuration, r.ActiveWorkers)
	return r
}

// ObserveNode records a completed node invocation's wall time and outcome.
func (r *Recorder) ObserveNode(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.TasksTotal.WithLabelValues(outcome).Inc()
	r.NodeDuration.Observe(elapsed.Seconds())
}

// IncOutcome records a task outcome that never reaches node invocation
// (e.g. cache/skip filtering), so no node duration applies.
func (r *Recorder) IncOutcome(outcome string) {
	if r == nil {
		return
	}
	r.TasksTotal.WithLabelValues(outcome).Inc()
}

// WorkerStarted and WorkerFinished track the number of scheduler worker
// slots currently executing a task.
func (r *Recorder) WorkerStarted() {
	if r == nil {
		return
	}
	r.ActiveWorkers.Inc()
}

func (r *Recorder) WorkerFinished() {
	if r == nil {
		return
	}
	r.ActiveWorkers.Dec()
}
