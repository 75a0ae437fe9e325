// Package metrics exposes Prometheus instrumentation for the hiro MCP
// server: tool call counts/latency, outbound HTTP request counts, and
// store operation counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for hiro. Pass to components
// that need to record metrics.
type Metrics struct {
	ToolCallsTotal      *prometheus.CounterVec
	ToolCallDuration    *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StoreOpsTotal       *prometheus.CounterVec
	CookieCacheHits     *prometheus.CounterVec
	ActiveMissions      prometheus.Gauge
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hiro",
				Name:      "tool_calls_total",
				Help:      "Total number of MCP tool calls processed",
			},
			[]string{"tool", "status"}, // status=ok/error
		),
		ToolCallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hiro",
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		HTTPRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hiro",
				Name:      "http_requests_total",
				Help:      "Total outbound HTTP requests issued by the http_request tool",
			},
			[]string{"method", "outcome"}, // outcome=ok/timeout/error
		),
		HTTPRequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hiro",
				Name:      "http_request_duration_seconds",
				Help:      "Outbound HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		StoreOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hiro",
				Name:      "store_ops_total",
				Help:      "Total repository operations",
			},
			[]string{"repo", "op", "status"},
		),
		CookieCacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hiro",
				Name:      "cookie_cache_total",
				Help:      "Cookie session resource reads by cache outcome",
			},
			[]string{"outcome"}, // outcome=hit/miss/error
		),
		ActiveMissions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hiro",
				Name:      "active_missions",
				Help:      "Number of missions currently in progress",
			},
		),
	}
}
