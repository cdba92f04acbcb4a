// Package gateway types - shared constants and wire shapes.
//
// DESIGN: Types used by the gateway for:
//   - Route table (API path → call type)
//   - Response headers
//   - OpenAI-style error envelope
//
// Types are defined here to avoid circular imports and provide clear contracts.
package gateway

import "github.com/remodlai/nova-gateway/internal/hooks"

// Response headers set by the gateway.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderModelID   = "X-Remodl-Model-Id"
)

// MaxRateLimitBuckets caps the number of tracked client IPs.
const MaxRateLimitBuckets = 10000

// DefaultMaxBodyBytes caps request bodies when the config leaves the limit
// unset.
const DefaultMaxBodyBytes = 10 << 20 // 10MB

// callTypeRoutes maps inbound API paths to call types. Every entry is a POST
// endpoint; the path is forwarded to the chosen backend unchanged.
var callTypeRoutes = map[string]hooks.CallType{
	"/v1/chat/completions":     hooks.CallTypeCompletion,
	"/v1/completions":          hooks.CallTypeTextCompletion,
	"/v1/embeddings":           hooks.CallTypeEmbeddings,
	"/v1/images/generations":   hooks.CallTypeImageGeneration,
	"/v1/moderations":          hooks.CallTypeModeration,
	"/v1/audio/transcriptions": hooks.CallTypeAudioTranscription,
}

// =============================================================================
// WIRE SHAPES - JSON the gateway itself emits
// =============================================================================

// apiError is the OpenAI-style error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// chatCompletion is a synthetic chat completion response, emitted when a
// hook short-circuits a completion call.
type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatChunk is one synthetic SSE event for short-circuited streaming calls.
type chatChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []chatChunkChoice `json:"choices"`
}

type chatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        chatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type chatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// textCompletion is a synthetic legacy completion response.
type textCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []textChoice `json:"choices"`
}

type textChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// healthStatus is the GET /health response.
type healthStatus struct {
	Status        string   `json:"status"`
	Version       string   `json:"version,omitempty"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Models        []string `json:"models"`
	Deployments   int      `json:"deployments"`
	Strategy      string   `json:"strategy"`
	Hooks         int      `json:"hooks"`
}
