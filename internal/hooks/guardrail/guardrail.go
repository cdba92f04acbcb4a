// Package guardrail rejects requests and stream chunks containing banned
// terms.
//
// DESIGN: Terms compile once at construction into case-insensitive
// word-boundary regexes; per-request work is a scan over the request text.
// The moderation side races the backend dispatch for chat calls, so a match
// can stop a request before the backend answer lands. The stream side scans
// chunk deltas lazily, carrying a short tail across chunk boundaries so a
// term split between two chunks is still caught.
package guardrail

import (
	"context"
	"fmt"
	"regexp"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/payload"
)

// HookName is the factory identifier.
const HookName = "guardrail"

// Hook scans request and response text for banned terms.
type Hook struct {
	terms    []string
	patterns []*regexp.Regexp
	message  string
	// carryLen is the longest term length; the stream scanner keeps that
	// many trailing bytes to catch terms split across chunks.
	carryLen int
}

// New builds the hook. Params:
//
//	banned_terms   []string - terms to reject (required, non-empty)
//	reject_message string   - client-visible rejection text (optional)
func New(params map[string]any) (*Hook, error) {
	raw, ok := params["banned_terms"]
	if !ok {
		return nil, fmt.Errorf("guardrail: banned_terms is required")
	}
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("guardrail: banned_terms must be a non-empty list")
	}

	h := &Hook{}
	for _, item := range list {
		term, ok := item.(string)
		if !ok || term == "" {
			return nil, fmt.Errorf("guardrail: banned_terms entries must be non-empty strings")
		}
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("guardrail: cannot compile term %q: %w", term, err)
		}
		h.terms = append(h.terms, term)
		h.patterns = append(h.patterns, pattern)
		if len(term) > h.carryLen {
			h.carryLen = len(term)
		}
	}

	if v, ok := params["reject_message"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("guardrail: reject_message must be a non-empty string")
		}
		h.message = s
	}
	return h, nil
}

// Name implements hooks.Hook.
func (h *Hook) Name() string { return HookName }

// Moderate rejects the request when its text contains a banned term.
func (h *Hook) Moderate(_ context.Context, rc *hooks.RequestContext) error {
	if term, ok := h.scan(payload.ExtractPromptText(rc.Payload)); ok {
		return h.reject(term)
	}
	return nil
}

// WrapStream scans streamed chunk text lazily; the first banned match
// terminates the stream with the rejection.
func (h *Hook) WrapStream(_ *hooks.RequestContext, next hooks.StreamIterator) hooks.StreamIterator {
	return &streamScanner{hook: h, next: next}
}

// scan returns the first banned term found in text.
func (h *Hook) scan(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for i, pattern := range h.patterns {
		if pattern.MatchString(text) {
			return h.terms[i], true
		}
	}
	return "", false
}

// reject builds the client-visible rejection.
func (h *Hook) reject(term string) *hooks.Rejection {
	msg := h.message
	if msg == "" {
		msg = fmt.Sprintf("content blocked: banned term %q", term)
	}
	return hooks.Reject(HookName, msg)
}

// streamScanner is the per-request stream wrapper.
type streamScanner struct {
	hook  *Hook
	next  hooks.StreamIterator
	carry string
}

// Next pulls one chunk and scans its delta text together with the tail of
// the previous chunk.
func (s *streamScanner) Next(ctx context.Context) ([]byte, error) {
	chunk, err := s.next.Next(ctx)
	if err != nil {
		return nil, err
	}
	text := payload.ExtractChunkText(chunk)
	if text != "" {
		window := s.carry + text
		if term, ok := s.hook.scan(window); ok {
			return nil, s.hook.reject(term)
		}
		if len(window) > s.hook.carryLen {
			window = window[len(window)-s.hook.carryLen:]
		}
		s.carry = window
	}
	return chunk, nil
}

// Close implements hooks.StreamIterator.
func (s *streamScanner) Close() error { return s.next.Close() }

var (
	_ hooks.ModerationHook = (*Hook)(nil)
	_ hooks.StreamHook     = (*Hook)(nil)
)
