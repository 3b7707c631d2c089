package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopmate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopmate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopmate_turns_total",
			Help: "Total number of processed turns by final outcome.",
		},
		[]string{"outcome"},
	)

	AgentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopmate_agent_duration_seconds",
			Help:    "Per-agent invocation duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"agent"},
	)

	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopmate_stream_events_total",
			Help: "Total number of emitted stream events by type.",
		},
		[]string{"type"},
	)

	GuardrailVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopmate_guardrail_verdicts_total",
			Help: "Guardrail verdicts by direction and result.",
		},
		[]string{"direction", "result"},
	)

	CatalogQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopmate_catalog_queries_total",
			Help: "Catalog similarity queries by modality.",
		},
		[]string{"modality"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TurnsTotal,
		AgentDuration,
		StreamEventsTotal,
		GuardrailVerdictsTotal,
		CatalogQueriesTotal,
	)
}
