// Package hooks provides the request/response hook pipeline for the gateway.
//
// DESIGN: Hooks intercept requests before dispatch and responses after it.
// A hook is any type with a Name; behavior is added by implementing one or
// more capability interfaces. The registry detects capabilities ONCE at
// registration via type assertions, so per-request execution walks plain
// typed slices with no reflection.
//
// Pipeline flow:
//
//	Request → [PRE-CALL] → Router → Dispatch ──→ [POST-CALL SUCCESS] → Response
//	              │            [MODERATION]╱│
//	              │          (raced, chat only)└──→ [STREAM WRAP] → SSE relay
//	              └─ terminal / rejection → shaped response, [POST-CALL FAILURE]
//
// Hooks run in registration order. A pre-call hook may mutate the request
// context in place, short-circuit with a Terminal value, or reject with a
// Rejection error. Implementations live in subpackages (taskrouting,
// guardrail, usage, audit) and are assembled from configuration by the
// builtin factory.
package hooks

import "context"

// Hook is the base interface: an identifier plus any capability interfaces
// the implementation chooses to satisfy.
type Hook interface {
	// Name returns the hook identifier used in configuration and logs.
	Name() string
}

// PreCallHook mutates or short-circuits a request before dispatch.
type PreCallHook interface {
	Hook

	// PreCall inspects and may mutate the request context. Returning a
	// non-nil Terminal stops the pipeline and renders the text as the
	// response. Returning a *Rejection error stops the pipeline on the
	// error path. Any other error is an unexpected hook failure.
	PreCall(ctx context.Context, rc *RequestContext) (*Terminal, error)
}

// ModerationHook vets a request concurrently with the backend call.
type ModerationHook interface {
	Hook

	// Moderate returns nil to pass or a *Rejection to fail the request.
	// For completion calls it runs in parallel with the dispatch; a
	// rejection that lands before the backend finishes wins the race.
	Moderate(ctx context.Context, rc *RequestContext) error
}

// PostCallSuccessHook observes and may transform a successful response.
type PostCallSuccessHook interface {
	Hook

	// PostCallSuccess may mutate resp in place. Hooks run in registration
	// order; each sees the response as left by its predecessor.
	PostCallSuccess(ctx context.Context, rc *RequestContext, resp *Response) error
}

// PostCallFailureHook is notified asynchronously when a request fails.
type PostCallFailureHook interface {
	Hook

	// PostCallFailure receives the error that failed the request. It runs
	// on the notifier goroutine, never on the request path.
	PostCallFailure(ctx context.Context, rc *RequestContext, callErr error) error
}

// StreamHook lazily wraps a streaming response.
type StreamHook interface {
	Hook

	// WrapStream returns an iterator that observes or transforms chunks as
	// the client pulls them. Implementations must preserve chunk order and
	// must not buffer the whole stream.
	WrapStream(rc *RequestContext, next StreamIterator) StreamIterator
}

// Terminal is a pre-call short-circuit: the pipeline stops and the text
// becomes the client response (shaped per call type).
type Terminal struct {
	Text string
}
