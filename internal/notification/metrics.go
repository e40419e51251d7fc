package notification

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nudge_dispatch_items_total",
		Help: "Subscriptions processed by dispatch runs, by outcome.",
	}, []string{"outcome"})

	ContentGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nudge_content_generated_total",
		Help: "Notification bodies produced, split by generated or fallback.",
	}, []string{"generated"})

	DispatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nudge_dispatch_runs_total",
		Help: "Dispatch runs by terminal status.",
	}, []string{"status"})

	DispatchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nudge_dispatch_run_duration_seconds",
		Help:    "Wall time of a full dispatch sweep.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)

// Metrics is the dispatcher's view of the collectors above; tests swap in a
// no-op implementation.
type Metrics interface {
	RecordOutcome(outcome Outcome)
	RecordContent(generated bool)
	RecordRun(status string)
	StartTimer() *prometheus.Timer
}

type PrometheusMetrics struct{}

func (m *PrometheusMetrics) RecordOutcome(outcome Outcome) {
	DispatchItems.WithLabelValues(string(outcome)).Inc()
}

func (m *PrometheusMetrics) RecordContent(generated bool) {
	ContentGenerated.WithLabelValues(strconv.FormatBool(generated)).Inc()
}

func (m *PrometheusMetrics) RecordRun(status string) {
	DispatchRuns.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) StartTimer() *prometheus.Timer {
	return prometheus.NewTimer(DispatchRunDuration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordOutcome(Outcome) {}
func (NopMetrics) RecordContent(bool)    {}
func (NopMetrics) RecordRun(string)      {}

func (NopMetrics) StartTimer() *prometheus.Timer {
	return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
}
