// Package usage tracks token consumption per request.
//
// DESIGN: Backends usually report usage in the response body; when they
// don't, tokens are estimated with tiktoken over the request and response
// text. Streaming responses never carry a usage block, so the stream wrapper
// accumulates delta text and estimates at end of stream. Results land in the
// Prometheus token counters and in the request context metadata, where the
// telemetry layer picks them up. The hook never mutates payloads.
package usage

import (
	"context"
	"fmt"
	"io"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/monitoring"
	"github.com/remodlai/nova-gateway/internal/payload"
)

const (
	// HookName is the factory identifier.
	HookName = "usage_tracker"

	// DefaultEncoding is the tiktoken encoding used for estimation.
	DefaultEncoding = "cl100k_base"

	// MetaKey is where the recorded usage lands in the request metadata.
	MetaKey = "usage"
)

// Hook records token usage for finished requests.
type Hook struct {
	encoder *tiktoken.Tiktoken
	metrics *monitoring.MetricsCollector
}

// New builds the hook. Params:
//
//	encoding string - tiktoken encoding name (default "cl100k_base")
func New(params map[string]any, metrics *monitoring.MetricsCollector) (*Hook, error) {
	encoding := DefaultEncoding
	if v, ok := params["encoding"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("usage_tracker: encoding must be a non-empty string")
		}
		encoding = s
	}
	encoder, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("usage_tracker: unknown encoding %q: %w", encoding, err)
	}
	return &Hook{encoder: encoder, metrics: metrics}, nil
}

// Name implements hooks.Hook.
func (h *Hook) Name() string { return HookName }

// PostCallSuccess records usage from the response, estimating when the
// backend reported none.
func (h *Hook) PostCallSuccess(_ context.Context, rc *hooks.RequestContext, resp *hooks.Response) error {
	u := payload.ExtractUsage(resp.Body)
	estimated := false
	if u.TotalTokens == 0 {
		u.PromptTokens = h.countTokens(payload.ExtractPromptText(rc.Payload))
		u.CompletionTokens = h.countTokens(payload.ExtractResponseText(resp.Body))
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
		estimated = true
	}
	h.record(rc, u, estimated)
	return nil
}

// PostCallFailure counts the failed call.
func (h *Hook) PostCallFailure(_ context.Context, rc *hooks.RequestContext, _ error) error {
	if h.metrics != nil {
		h.metrics.RecordCallFailure(rc.Model)
	}
	return nil
}

// WrapStream accumulates streamed completion text and records estimated
// usage when the stream ends.
func (h *Hook) WrapStream(rc *hooks.RequestContext, next hooks.StreamIterator) hooks.StreamIterator {
	return &usageCounter{hook: h, rc: rc, next: next}
}

// countTokens returns the token count of text, zero for empty text.
func (h *Hook) countTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(h.encoder.Encode(text, nil, nil))
}

// record publishes usage to metrics, logs and the request metadata.
func (h *Hook) record(rc *hooks.RequestContext, u payload.Usage, estimated bool) {
	if h.metrics != nil {
		h.metrics.RecordTokens(rc.Model, u.PromptTokens, u.CompletionTokens)
	}
	rc.SetMeta(MetaKey, u)
	log.Debug().
		Str("request_id", rc.RequestID).
		Str("model", rc.Model).
		Int("prompt_tokens", u.PromptTokens).
		Int("completion_tokens", u.CompletionTokens).
		Bool("estimated", estimated).
		Msg("usage_recorded")
}

// usageCounter is the per-request stream wrapper.
type usageCounter struct {
	hook     *Hook
	rc       *hooks.RequestContext
	next     hooks.StreamIterator
	text     []byte
	chunks   int
	recorded bool
}

// Next forwards one chunk, noting its delta text.
func (c *usageCounter) Next(ctx context.Context) ([]byte, error) {
	chunk, err := c.next.Next(ctx)
	if err != nil {
		if err == io.EOF {
			c.recordOnce()
		}
		return nil, err
	}
	c.chunks++
	if text := payload.ExtractChunkText(chunk); text != "" {
		c.text = append(c.text, text...)
	}
	return chunk, nil
}

// Close records usage for streams abandoned before EOF.
func (c *usageCounter) Close() error {
	c.recordOnce()
	return c.next.Close()
}

func (c *usageCounter) recordOnce() {
	if c.recorded {
		return
	}
	c.recorded = true
	u := payload.Usage{
		PromptTokens:     c.hook.countTokens(payload.ExtractPromptText(c.rc.Payload)),
		CompletionTokens: c.hook.countTokens(string(c.text)),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	c.hook.record(c.rc, u, true)
}

var (
	_ hooks.PostCallSuccessHook = (*Hook)(nil)
	_ hooks.PostCallFailureHook = (*Hook)(nil)
	_ hooks.StreamHook          = (*Hook)(nil)
)
