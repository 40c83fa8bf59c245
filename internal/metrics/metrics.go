// Package metrics exposes Prometheus collectors for imports.
package metrics

import (
	"sync"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fleetimport"

var (
	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Finished imports by kind, policy and status",
		},
		[]string{"kind", "policy", "status"}, // status: succeeded|partial|failed|cancelled
	)
	RowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Imported rows by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: succeeded|failed|skipped
	)
	SubmissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Latency of single record submissions to the fleet service",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "result"}, // result: ok|error
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors with the default registry.
// Calling it more than once is a no-op.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ImportsTotal, RowsTotal, SubmissionDuration)
	})
}

// Recorder updates the collectors from service events.
type Recorder struct{}

var _ core.Observer = Recorder{}

// ImportFinished counts the import and its rows.
func (Recorder) ImportFinished(s core.ImportSummary, err error) {
	ImportsTotal.WithLabelValues(s.Kind, string(s.Policy), Status(s, err)).Inc()
	RowsTotal.WithLabelValues(s.Kind, "succeeded").Add(float64(s.Succeeded))
	RowsTotal.WithLabelValues(s.Kind, "failed").Add(float64(s.Failed))
	RowsTotal.WithLabelValues(s.Kind, "skipped").Add(float64(s.SkippedRows))
}

// SubmissionObserved records one submission's latency.
func (Recorder) SubmissionObserved(kind string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SubmissionDuration.WithLabelValues(kind, result).Observe(elapsed.Seconds())
}

// Status classifies a finished import.
func Status(s core.ImportSummary, err error) string {
	switch {
	case s.Cancelled:
		return "cancelled"
	case err != nil:
		return "failed"
	case s.Failed > 0:
		return "partial"
	default:
		return "succeeded"
	}
}
