// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both gateway/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - RoutingEvent:  Telemetry data for each routed request
//   - Config types:  TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// RoutingEvent captures one request through the gateway: what arrived, which
// deployment the router chose, and how the call ended.
type RoutingEvent struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	ClientIP       string    `json:"client_ip,omitempty"`
	CallType       string    `json:"call_type"`
	Model          string    `json:"model,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	DeploymentID   string    `json:"deployment_id,omitempty"`
	Strategy       string    `json:"strategy,omitempty"`
	Stream         bool      `json:"stream,omitempty"`
	StatusCode     int       `json:"status_code"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	RejectedBy     string    `json:"rejected_by,omitempty"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	// Usage from the backend response when present, estimated otherwise.
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
	WebhookURL           string        `yaml:"webhook_url"`
	WebhookMinInterval   time.Duration `yaml:"webhook_min_interval"`
}
