package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "budgetquery_build_info",
			Help: "Build information of the budget query service",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetquery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetquery_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "budgetquery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// PipelineStageTotal counts pipeline stage runs by outcome. Interpret outcomes are the
	// interpretation status (ready, clarification_needed, cannot_answer) or error.
	PipelineStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetquery_pipeline_stage_total",
			Help: "Total number of pipeline stage runs by outcome",
		},
		[]string{"stage", "outcome"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetquery_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	UnsafeQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetquery_unsafe_queries_total",
			Help: "Total number of statements rejected by the safety gate",
		},
		[]string{"keyword"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetquery_store_query_duration_seconds",
			Help:    "Duration of backing store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "outcome"},
	)

	StoreRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetquery_store_rows_returned",
			Help:    "Number of rows returned per backing store query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"driver"},
	)

	DownloadsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "budgetquery_downloads_pending",
			Help: "Number of prepared spreadsheet downloads not yet expired",
		},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetquery_mcp_tool_calls_total",
			Help: "Total number of MCP tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "budgetquery_mcp_tool_call_duration_seconds",
			Help:    "Duration of MCP tool calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budgetquery_feedback_total",
			Help: "Total number of feedback entries by rating",
		},
		[]string{"rating"},
	)
)

// ObserveStage records the outcome and duration of a pipeline stage.
func ObserveStage(stage, outcome string, start time.Time) {
	PipelineStageTotal.WithLabelValues(stage, outcome).Inc()
	PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Outcome maps an error to a success/error label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
