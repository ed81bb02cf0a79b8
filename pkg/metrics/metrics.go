// Package metrics exposes pipeline counters on the default Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmind_source_fetches_total",
			Help: "Source fetch attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmind_runs_total",
			Help: "Pipeline runs by kind and result",
		},
		[]string{"kind", "result"},
	)
	TasksExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmind_tasks_extracted_total",
			Help: "Tasks returned by the extraction engine",
		},
	)
	ExtractionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskmind_extraction_duration_seconds",
			Help:    "Time spent waiting on the generative model",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
	)
	StoredTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskmind_stored_tasks",
			Help: "Tasks currently in the list",
		},
	)
)

func init() {
	prometheus.MustRegister(SourceFetches)
	prometheus.MustRegister(Runs)
	prometheus.MustRegister(TasksExtracted)
	prometheus.MustRegister(ExtractionSeconds)
	prometheus.MustRegister(StoredTasks)
}

// Outcome labels a fetch result.
func Outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "unavailable"
}
