package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olive_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "olive_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olive_questions_total",
			Help: "Questions processed, by terminal state and error kind.",
		},
		[]string{"state", "kind"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "olive_pipeline_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	completionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "olive_completion_tokens_total",
			Help: "Tokens reported by the completion provider.",
		},
		[]string{"provider"},
	)

	fetchedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "olive_fetched_rows_total",
			Help: "Rows returned by backend row fetches.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		questionsTotal,
		stageDurationSeconds,
		completionTokensTotal,
		fetchedRowsTotal,
	)
}

// ObserveQuestion records one finished question.
func ObserveQuestion(state, kind string) {
	questionsTotal.WithLabelValues(state, kind).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveCompletionTokens adds provider-reported token usage.
func ObserveCompletionTokens(provider string, tokens int) {
	if tokens > 0 {
		completionTokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
}

// ObserveFetchedRows adds to the fetched row counter.
func ObserveFetchedRows(n int) {
	if n > 0 {
		fetchedRowsTotal.Add(float64(n))
	}
}
