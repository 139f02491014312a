package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	responseOperationsTotal   *prometheus.CounterVec
	responseOperationDuration *prometheus.HistogramVec
	responsesDeletedTotal     *prometheus.CounterVec

	exportsTotal          *prometheus.CounterVec
	exportDurationSeconds prometheus.Histogram
	exportSizeBytes       prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatair_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avatair_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5, 10, 30},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatair_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		responseOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatair_response_operations_total",
			Help: "Response lifecycle operations by outcome.",
		}, []string{"operation", "outcome"})

		responseOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avatair_response_operation_duration_seconds",
			Help:    "Duration of response lifecycle operations.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"})

		responsesDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatair_responses_deleted_total",
			Help: "Responses removed by deletion mode.",
		}, []string{"mode"})

		exportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avatair_exports_total",
			Help: "Survey archive exports by outcome.",
		}, []string{"outcome"})

		exportDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "avatair_export_duration_seconds",
			Help:    "Time spent assembling survey archives.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		exportSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "avatair_export_size_bytes",
			Help:    "Size of assembled survey archives.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			responseOperationsTotal, responseOperationDuration, responsesDeletedTotal,
			exportsTotal, exportDurationSeconds, exportSizeBytes,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ResponseOperations counts orchestrator operations by outcome.
func ResponseOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return responseOperationsTotal
}

// ResponseOperationDuration tracks orchestrator operation latency.
func ResponseOperationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return responseOperationDuration
}

// ResponsesDeleted counts removed responses.
func ResponsesDeleted() *prometheus.CounterVec {
	RegisterMetrics()
	return responsesDeletedTotal
}

// Exports counts archive exports.
func Exports() *prometheus.CounterVec {
	RegisterMetrics()
	return exportsTotal
}

// ExportDuration tracks archive assembly time.
func ExportDuration() prometheus.Histogram {
	RegisterMetrics()
	return exportDurationSeconds
}

// ExportSize tracks archive sizes.
func ExportSize() prometheus.Histogram {
	RegisterMetrics()
	return exportSizeBytes
}
