// Package monitoring - metrics.go exposes Prometheus collectors.
//
// DESIGN: MetricsCollector owns a private prometheus.Registry so tests can
// instantiate collectors without global registration conflicts. The gateway
// mounts Handler() at /metrics. Recorded series:
//   - requests_total{call_type,status_class}
//   - request_duration_seconds{call_type}
//   - routing_decisions_total{model,strategy}
//   - deployment_in_flight{deployment} / deployment_latency_seconds{deployment}
//   - hook_rejections_total{hook} / hook_errors_total{hook}
//   - stream_chunks_total
package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "nova_gateway"

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	routingDecisions   *prometheus.CounterVec
	deploymentInFlight *prometheus.GaugeVec
	deploymentLatency  *prometheus.GaugeVec
	hookRejections     *prometheus.CounterVec
	hookErrors         *prometheus.CounterVec
	streamChunks       prometheus.Counter
	rateLimited        prometheus.Counter
	tokensTotal        *prometheus.CounterVec
	callFailures       *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector with its own registry.
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests handled, by call type and status class.",
		}, []string{"call_type", "status_class"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call_type"}),
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "routing_decisions_total",
			Help:      "Deployment selections, by logical model and strategy.",
		}, []string{"model", "strategy"}),
		deploymentInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "deployment_in_flight",
			Help:      "Current in-flight requests per deployment.",
		}, []string{"deployment"}),
		deploymentLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "deployment_latency_seconds",
			Help:      "Moving-average backend latency per deployment.",
		}, []string{"deployment"}),
		hookRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hook_rejections_total",
			Help:      "Requests rejected by a hook.",
		}, []string{"hook"}),
		hookErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hook_errors_total",
			Help:      "Unexpected hook failures.",
		}, []string{"hook"}),
		streamChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stream_chunks_total",
			Help:      "SSE chunks relayed to clients.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter.",
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tokens_total",
			Help:      "Token usage, by logical model and kind (prompt/completion).",
		}, []string{"model", "kind"}),
		callFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "call_failures_total",
			Help:      "Failed calls observed by the failure notification path.",
		}, []string{"model"}),
	}

	mc.registry.MustRegister(
		mc.requestsTotal,
		mc.requestDuration,
		mc.routingDecisions,
		mc.deploymentInFlight,
		mc.deploymentLatency,
		mc.hookRejections,
		mc.hookErrors,
		mc.streamChunks,
		mc.rateLimited,
		mc.tokensTotal,
		mc.callFailures,
	)
	return mc
}

// Handler returns the /metrics HTTP handler.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a finished request.
func (mc *MetricsCollector) RecordRequest(callType string, statusCode int, latency time.Duration) {
	class := fmt.Sprintf("%dxx", statusCode/100)
	mc.requestsTotal.WithLabelValues(callType, class).Inc()
	mc.requestDuration.WithLabelValues(callType).Observe(latency.Seconds())
}

// RecordRoutingDecision records a deployment selection.
func (mc *MetricsCollector) RecordRoutingDecision(model, strategy string) {
	mc.routingDecisions.WithLabelValues(model, strategy).Inc()
}

// SetDeploymentInFlight updates the in-flight gauge for a deployment.
func (mc *MetricsCollector) SetDeploymentInFlight(deploymentID string, n int64) {
	mc.deploymentInFlight.WithLabelValues(deploymentID).Set(float64(n))
}

// SetDeploymentLatency updates the moving-average latency gauge.
func (mc *MetricsCollector) SetDeploymentLatency(deploymentID string, seconds float64) {
	mc.deploymentLatency.WithLabelValues(deploymentID).Set(seconds)
}

// RecordHookRejection records a request rejected by a hook.
func (mc *MetricsCollector) RecordHookRejection(hook string) {
	mc.hookRejections.WithLabelValues(hook).Inc()
}

// RecordHookError records an unexpected hook failure.
func (mc *MetricsCollector) RecordHookError(hook string) {
	mc.hookErrors.WithLabelValues(hook).Inc()
}

// RecordStreamChunks adds relayed chunk count.
func (mc *MetricsCollector) RecordStreamChunks(n int) {
	mc.streamChunks.Add(float64(n))
}

// RecordRateLimited records a request refused by the rate limiter.
func (mc *MetricsCollector) RecordRateLimited() {
	mc.rateLimited.Inc()
}

// RecordTokens adds prompt and completion token usage for a model.
func (mc *MetricsCollector) RecordTokens(model string, prompt, completion int) {
	if prompt > 0 {
		mc.tokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		mc.tokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// RecordCallFailure records a failed call for a model.
func (mc *MetricsCollector) RecordCallFailure(model string) {
	mc.callFailures.WithLabelValues(model).Inc()
}
