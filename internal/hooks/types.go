// Package hooks - types.go defines the request context and response types
// threaded through the pipeline.
package hooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CallType identifies the kind of call a request represents.
type CallType string

const (
	CallTypeCompletion         CallType = "completion"
	CallTypeTextCompletion     CallType = "text_completion"
	CallTypeEmbeddings         CallType = "embeddings"
	CallTypeImageGeneration    CallType = "image_generation"
	CallTypeModeration         CallType = "moderation"
	CallTypeAudioTranscription CallType = "audio_transcription"
)

// ParseCallType validates a call type string.
func ParseCallType(s string) (CallType, error) {
	switch ct := CallType(s); ct {
	case CallTypeCompletion, CallTypeTextCompletion, CallTypeEmbeddings,
		CallTypeImageGeneration, CallTypeModeration, CallTypeAudioTranscription:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown call type %q", s)
	}
}

// IsCompletionLike reports whether a terminal or rejection for this call type
// renders as a synthetic successful completion rather than an error payload.
func (ct CallType) IsCompletionLike() bool {
	return ct == CallTypeCompletion || ct == CallTypeTextCompletion
}

// Identity is the authenticated caller as established by the outer auth
// layer. The gateway consumes it; it never validates credentials itself.
type Identity struct {
	// KeyAlias is a masked form of the presented API key, safe to log.
	KeyAlias string

	// User is the end-user identifier from the request payload, if any.
	User string
}

// RequestContext carries one request through the hook pipeline. Hooks mutate
// it in place; hook N+1 sees the context exactly as hook N left it.
type RequestContext struct {
	RequestID  string
	CallType   CallType
	Model      string // logical model name from the payload
	Payload    []byte // raw JSON request body, mutable
	Tags       []string
	Caller     Identity
	ReceivedAt time.Time

	// Deployment is the chosen deployment ID, set after routing. Empty
	// during pre-call.
	Deployment string

	// Metadata is per-request scratch space shared across hooks.
	Metadata map[string]any
}

// AddTags unions tags into the context, preserving first-seen order.
func (rc *RequestContext) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag == "" || rc.HasTag(tag) {
			continue
		}
		rc.Tags = append(rc.Tags, tag)
	}
}

// HasTag reports whether the context carries the tag.
func (rc *RequestContext) HasTag(tag string) bool {
	for _, t := range rc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SetMeta stores a metadata value, allocating the map on first use.
func (rc *RequestContext) SetMeta(key string, value any) {
	if rc.Metadata == nil {
		rc.Metadata = make(map[string]any)
	}
	rc.Metadata[key] = value
}

// Meta retrieves a metadata value.
func (rc *RequestContext) Meta(key string) (any, bool) {
	v, ok := rc.Metadata[key]
	return v, ok
}

// Response is a backend response as seen by post-call hooks. Body is mutable;
// transforms apply in place.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// StreamIterator yields SSE chunk payloads one at a time. Next returns
// io.EOF after the final chunk. Implementations stop early when ctx is
// cancelled.
type StreamIterator interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// SliceIterator adapts a fixed chunk list into a StreamIterator. Used by
// tests and by synthetic terminal streams.
type SliceIterator struct {
	chunks [][]byte
	pos    int
}

// NewSliceIterator creates an iterator over the given chunks.
func NewSliceIterator(chunks [][]byte) *SliceIterator {
	return &SliceIterator{chunks: chunks}
}

// Next returns the next chunk or io.EOF.
func (s *SliceIterator) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// Close implements StreamIterator.
func (s *SliceIterator) Close() error { return nil }
