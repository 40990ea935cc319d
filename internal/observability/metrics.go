// Package observability holds the process-wide prometheus collectors.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics definitions
var (
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moonlens_analysis_seconds",
		Help:    "Time spent parsing and analysing one document.",
		Buckets: prometheus.DefBuckets,
	})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moonlens_diagnostics_total",
		Help: "Diagnostics produced, by severity.",
	}, []string{"severity"})

	DocumentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moonlens_documents_indexed_total",
		Help: "Documents analysed and committed to the index.",
	})

	SyntaxErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moonlens_syntax_errors_total",
		Help: "Documents that failed to parse.",
	})

	WatcherBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moonlens_watcher_batches_total",
		Help: "Debounced change batches received from the file watcher.",
	})
)

// ObserveAnalysis records one document's analysis time.
func ObserveAnalysis(start time.Time) {
	AnalysisDuration.Observe(time.Since(start).Seconds())
}

// CountDiagnostic increments the diagnostic counter for severity.
func CountDiagnostic(severity string) {
	DiagnosticsTotal.WithLabelValues(severity).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
