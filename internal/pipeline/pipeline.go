// Package pipeline executes the hook chains around a backend call.
//
// DESIGN: Three synchronous passes and one asynchronous path:
//
//	PreCall          - registration order, context threaded hook to hook;
//	                   a Terminal or error stops the chain.
//	Moderation race  - moderation hooks run concurrently with the dispatch;
//	                   first rejection wins (race.go).
//	PostCallSuccess  - registration order over the mutable response.
//	Failure notify   - post-call-failure hooks run on the notifier
//	                   goroutine, never on the request path (notifier.go).
//
// Ordering is the determinism guarantee for guardrail behavior: no hook is
// skipped or reordered, and hook i+1 always sees hook i's mutations. Panics
// inside hooks are recovered into HookError - a broken hook fails its own
// request, nothing else.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/monitoring"
)

// Pipeline runs the hook chains of one registry.
type Pipeline struct {
	registry *hooks.Registry
	notifier *Notifier
	metrics  *monitoring.MetricsCollector
}

// New creates a pipeline over a registry. The notifier must already be
// started; metrics may be nil in tests.
func New(registry *hooks.Registry, notifier *Notifier, metrics *monitoring.MetricsCollector) *Pipeline {
	return &Pipeline{registry: registry, notifier: notifier, metrics: metrics}
}

// PreCall runs the pre-call chain. A non-nil Terminal short-circuits: the
// remaining hooks are skipped and no dispatch happens. A returned error is
// either a *hooks.Rejection or a *HookError; in both cases failure
// notifications have been dispatched.
func (p *Pipeline) PreCall(ctx context.Context, rc *hooks.RequestContext) (*hooks.Terminal, error) {
	for _, h := range p.registry.PreCallHooks() {
		term, err := p.safePreCall(ctx, h, rc)
		if err != nil {
			p.failHook(rc, h.Name(), "pre_call", err)
			return nil, p.classify(h.Name(), "pre_call", err)
		}
		if term != nil {
			log.Info().
				Str("request_id", rc.RequestID).
				Str("hook", h.Name()).
				Msg("pre_call_terminal")
			return term, nil
		}
	}
	return nil, nil
}

// PostCallSuccess runs the success chain over the mutable response.
func (p *Pipeline) PostCallSuccess(ctx context.Context, rc *hooks.RequestContext, resp *hooks.Response) error {
	for _, h := range p.registry.PostCallSuccessHooks() {
		if err := p.safePostCallSuccess(ctx, h, rc, resp); err != nil {
			p.failHook(rc, h.Name(), "post_call_success", err)
			return p.classify(h.Name(), "post_call_success", err)
		}
	}
	return nil
}

// WrapStream layers every stream hook around an iterator, first registered
// innermost so it observes chunks first.
func (p *Pipeline) WrapStream(rc *hooks.RequestContext, it hooks.StreamIterator) hooks.StreamIterator {
	for _, sh := range p.registry.StreamHooks() {
		it = sh.WrapStream(rc, it)
	}
	return it
}

// NotifyFailure dispatches asynchronous failure notifications for a request.
func (p *Pipeline) NotifyFailure(rc *hooks.RequestContext, callErr error) {
	if p.notifier != nil {
		p.notifier.Notify(rc, callErr)
	}
}

// failHook records metrics and dispatches failure notifications for one
// failed hook invocation.
func (p *Pipeline) failHook(rc *hooks.RequestContext, hook, stage string, err error) {
	if p.metrics != nil {
		if _, ok := hooks.AsRejection(err); ok {
			p.metrics.RecordHookRejection(hook)
		} else {
			p.metrics.RecordHookError(hook)
		}
	}
	log.Warn().
		Str("request_id", rc.RequestID).
		Str("hook", hook).
		Str("stage", stage).
		Err(err).
		Msg("hook_pipeline_aborted")
	p.NotifyFailure(rc, err)
}

// classify passes rejections through and wraps everything else in HookError.
func (p *Pipeline) classify(hook, stage string, err error) error {
	if _, ok := hooks.AsRejection(err); ok {
		return err
	}
	return &HookError{Hook: hook, Stage: stage, Err: err}
}

// safePreCall invokes one pre-call hook with panic recovery.
func (p *Pipeline) safePreCall(ctx context.Context, h hooks.PreCallHook, rc *hooks.RequestContext) (term *hooks.Terminal, err error) {
	defer func() {
		if r := recover(); r != nil {
			term, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.PreCall(ctx, rc)
}

// safePostCallSuccess invokes one success hook with panic recovery.
func (p *Pipeline) safePostCallSuccess(ctx context.Context, h hooks.PostCallSuccessHook, rc *hooks.RequestContext, resp *hooks.Response) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.PostCallSuccess(ctx, rc, resp)
}

// safeModerate invokes one moderation hook with panic recovery.
func (p *Pipeline) safeModerate(ctx context.Context, h hooks.ModerationHook, rc *hooks.RequestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Moderate(ctx, rc)
}
