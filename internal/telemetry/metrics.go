// Package telemetry exposes the gateway's Prometheus metrics.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "musehub_tool_calls_total",
		Help: "Tool invocations by tool name and outcome status.",
	}, []string{"tool", "status"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "musehub_tool_duration_seconds",
		Help:    "Tool handler duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"tool"})

	backendAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "musehub_backend_api_errors_total",
		Help: "Failed backend calls by target path and HTTP status (0 = transport fault).",
	}, []string{"target", "status_code"})

	backendRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "musehub_backend_retries_total",
		Help: "Retry attempts against the backend by target path.",
	}, []string{"target"})

	confirmationsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "musehub_confirmations_relayed_total",
		Help: "Confirmation envelopes relayed to the agent by capability.",
	}, []string{"capability"})
)

func IncToolCall(toolName, status string) {
	toolCalls.WithLabelValues(toolName, status).Inc()
}

func ObserveToolDuration(toolName string, d time.Duration) {
	toolDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

func IncBackendAPIError(target string, statusCode int) {
	backendAPIErrors.WithLabelValues(target, strconv.Itoa(statusCode)).Inc()
}

func IncBackendRetry(target string) {
	backendRetries.WithLabelValues(target).Inc()
}

func IncConfirmationRelayed(capability string) {
	confirmationsRelayed.WithLabelValues(capability).Inc()
}
