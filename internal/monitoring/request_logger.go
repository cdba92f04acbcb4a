// Package monitoring - request_logger.go logs HTTP request lifecycle.
//
// DESIGN: Structured logging for request tracing at DEBUG level:
//   - LogIncoming:   Request received from client
//   - LogOutgoing:   Request dispatched to a deployment
//   - LogResponse:   Response sent to client
//   - LogHookStage:  Hook pipeline stage transitions
package monitoring

import (
	"net/http"
	"time"
)

// RequestLogger logs HTTP request lifecycle events.
type RequestLogger struct {
	logger *Logger
}

// NewRequestLogger creates a new request logger.
func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// RequestInfo contains incoming request information.
type RequestInfo struct {
	RequestID  string
	Method     string
	Path       string
	RemoteAddr string
	CallType   string
	BodySize   int
	StartTime  time.Time
}

// NewRequestInfo creates RequestInfo from an HTTP request.
func NewRequestInfo(r *http.Request, requestID string, bodySize int) *RequestInfo {
	return &RequestInfo{
		RequestID:  requestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		BodySize:   bodySize,
		StartTime:  time.Now(),
	}
}

// LogIncoming logs an incoming request.
func (rl *RequestLogger) LogIncoming(info *RequestInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("method", info.Method).
		Str("path", info.Path).
		Str("call_type", info.CallType).
		Int("body_size", info.BodySize).
		Msg("incoming")
}

// OutgoingRequestInfo contains outgoing dispatch information.
type OutgoingRequestInfo struct {
	RequestID  string
	Deployment string
	TargetURL  string
	Model      string
	Tags       []string
	BodySize   int
	Stream     bool
}

// LogOutgoing logs a dispatch to a deployment.
func (rl *RequestLogger) LogOutgoing(info *OutgoingRequestInfo) {
	event := rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("deployment", info.Deployment).
		Str("model", info.Model).
		Int("body_size", info.BodySize)
	if len(info.Tags) > 0 {
		event = event.Strs("tags", info.Tags)
	}
	if info.Stream {
		event = event.Bool("stream", true)
	}
	event.Msg("outgoing")
}

// ResponseInfo contains response information.
type ResponseInfo struct {
	RequestID  string
	StatusCode int
	Latency    time.Duration
}

// LogResponse logs a response.
func (rl *RequestLogger) LogResponse(info *ResponseInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Int("status", info.StatusCode).
		Dur("latency", info.Latency).
		Msg("response")
}

// HookStageInfo contains hook pipeline stage information.
type HookStageInfo struct {
	RequestID string
	Stage     string
	Hook      string
}

// LogHookStage logs a hook pipeline stage.
func (rl *RequestLogger) LogHookStage(info *HookStageInfo) {
	rl.logger.Debug().
		Str("request_id", info.RequestID).
		Str("stage", info.Stage).
		Str("hook", info.Hook).
		Msg("hook_pipeline")
}
