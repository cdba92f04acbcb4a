// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagHighLatency:    Warn when request exceeds threshold
//   - FlagHookFailure:    Error when a hook fails unexpectedly
//   - FlagUpstreamError:  Warn on backend 4xx/5xx responses
//   - FlagPanic:          Error on recovered panics
//
// When webhook_url is set, error-level flags additionally POST a small JSON
// payload, throttled to one delivery per webhook_min_interval.
package monitoring

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger               *Logger
	highLatencyThreshold time.Duration
	webhookURL           string
	webhookMinInterval   time.Duration
	httpClient           *http.Client

	mu           sync.Mutex
	lastDelivery map[string]time.Time
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	threshold := cfg.HighLatencyThreshold
	if threshold == 0 {
		threshold = 5 * time.Second
	}
	minInterval := cfg.WebhookMinInterval
	if minInterval == 0 {
		minInterval = time.Minute
	}
	return &AlertManager{
		logger:               logger,
		highLatencyThreshold: threshold,
		webhookURL:           cfg.WebhookURL,
		webhookMinInterval:   minInterval,
		httpClient:           &http.Client{Timeout: 5 * time.Second},
		lastDelivery:         make(map[string]time.Time),
	}
}

// FlagHighLatency logs when request latency exceeds threshold.
func (am *AlertManager) FlagHighLatency(requestID string, latency time.Duration, deployment, path string) {
	if latency < am.highLatencyThreshold {
		return
	}
	am.logger.Warn().
		Str("request_id", requestID).
		Dur("latency", latency).
		Str("deployment", deployment).
		Str("path", path).
		Msg("high_latency")
}

// FlagHookFailure logs an unexpected hook failure.
func (am *AlertManager) FlagHookFailure(requestID, hook string, err error) {
	am.logger.Error().
		Str("request_id", requestID).
		Str("hook", hook).
		Err(err).
		Msg("hook_failed")
	am.deliver("hook_failed", map[string]string{
		"request_id": requestID,
		"hook":       hook,
		"error":      err.Error(),
	})
}

// FlagUpstreamError logs a backend error response.
func (am *AlertManager) FlagUpstreamError(requestID, deployment string, statusCode int, errorMsg string) {
	am.logger.Warn().
		Str("request_id", requestID).
		Str("deployment", deployment).
		Int("status", statusCode).
		Msg("upstream_error")
}

// FlagInvalidRequest logs invalid request.
func (am *AlertManager) FlagInvalidRequest(requestID, reason string) {
	am.logger.Debug().
		Str("request_id", requestID).
		Str("reason", reason).
		Msg("invalid_request")
}

// FlagPanic logs recovered panic.
func (am *AlertManager) FlagPanic(requestID string, panicValue interface{}, stack string) {
	am.logger.Error().
		Str("request_id", requestID).
		Interface("panic", panicValue).
		Msg("panic_recovered")
	am.deliver("panic_recovered", map[string]string{
		"request_id": requestID,
		"stack":      stack,
	})
}

// FlagUpstreamTimeout logs upstream timeout.
func (am *AlertManager) FlagUpstreamTimeout(requestID, deployment string, timeout time.Duration) {
	am.logger.Error().
		Str("request_id", requestID).
		Str("deployment", deployment).
		Dur("timeout", timeout).
		Msg("upstream_timeout")
}

// FlagRateLimited logs a rate-limited client.
func (am *AlertManager) FlagRateLimited(clientIP string) {
	am.logger.Warn().
		Str("client_ip", clientIP).
		Msg("rate_limited")
}

// deliver POSTs the alert to the webhook, at most once per interval per kind.
func (am *AlertManager) deliver(kind string, fields map[string]string) {
	if am.webhookURL == "" {
		return
	}

	am.mu.Lock()
	last := am.lastDelivery[kind]
	if time.Since(last) < am.webhookMinInterval {
		am.mu.Unlock()
		return
	}
	am.lastDelivery[kind] = time.Now()
	am.mu.Unlock()

	payload := map[string]any{
		"alert":     kind,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"fields":    fields,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	go func() {
		resp, err := am.httpClient.Post(am.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			am.logger.Warn().Err(err).Str("alert", kind).Msg("alert_webhook_failed")
			return
		}
		resp.Body.Close()
	}()
}
