// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "ledger_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	aggregationsTotal  *prometheus.CounterVec
	validationFailures *prometheus.CounterVec

	statementExportTotal   *prometheus.CounterVec
	statementExportLatency *prometheus.HistogramVec

	importJobsTotal *prometheus.CounterVec
	notionSyncTotal *prometheus.CounterVec
)

// Init registers all collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		)
		aggregationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregations_total",
				Help: "Ledger aggregations by result",
			},
			[]string{"result"},
		)
		validationFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validation_failures_total",
				Help: "Rejected records by offending field",
			},
			[]string{"field"},
		)
		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_exports_total",
				Help: "Statement exports by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_duration_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)
		importJobsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_jobs_total",
				Help: "Slip import jobs by final status",
			},
			[]string{"status"},
		)
		notionSyncTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notion_sync_pages_total",
				Help: "Notion pages touched by the party balance sync, by action",
			},
			[]string{"action"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			aggregationsTotal,
			validationFailures,
			statementExportTotal,
			statementExportLatency,
			importJobsTotal,
			notionSyncTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, code int, duration time.Duration) {
	if httpRequests == nil {
		return
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// IncAggregation counts one aggregation run.
func IncAggregation(result string) {
	if aggregationsTotal != nil {
		aggregationsTotal.WithLabelValues(result).Inc()
	}
}

// IncValidationFailure counts one rejected record.
func IncValidationFailure(field string) {
	if field == "" {
		field = "unknown"
	}
	if validationFailures != nil {
		validationFailures.WithLabelValues(field).Inc()
	}
}

// ObserveStatementExport records one export.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// IncImportJob counts a finished import job.
func IncImportJob(status string) {
	if importJobsTotal != nil {
		importJobsTotal.WithLabelValues(status).Inc()
	}
}

// AddNotionSync counts pages created, updated or archived by a sync.
func AddNotionSync(action string, n int) {
	if notionSyncTotal != nil && n > 0 {
		notionSyncTotal.WithLabelValues(action).Add(float64(n))
	}
}
