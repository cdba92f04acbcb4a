// Package pipeline - race.go runs moderation hooks concurrently with the
// backend dispatch.
//
// DESIGN: Structured concurrency with two branches. The dispatch branch runs
// the backend call on its own cancellable context; the moderation branch
// fans the moderation hooks out on an errgroup whose context dies on the
// first rejection. Whichever outcome decides the request cancels the losing
// branch: a rejection cancels the dispatch, a finished dispatch cancels
// still-running moderations. Both branches post to buffered channels, so a
// cancelled loser drains without leaking a goroutine.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/remodlai/nova-gateway/internal/hooks"
)

type raceResult[T any] struct {
	value T
	err   error
}

// Dispatch races the moderation hooks against dispatch for completion calls.
// For every other call type, or when no moderation hooks are registered,
// dispatch runs alone. Generic over the dispatch result so unary responses
// and stream handles share the race semantics.
//
// First moderation rejection before the dispatch finishes wins: the dispatch
// context is cancelled and the rejection is returned. A finished dispatch
// wins: moderation is cancelled and its verdict ignored. Moderation passing
// never delays the dispatch result.
func Dispatch[T any](p *Pipeline, ctx context.Context, rc *hooks.RequestContext, dispatch func(context.Context) (T, error)) (T, error) {
	mods := p.registry.ModerationHooks()
	if len(mods) == 0 || rc.CallType != hooks.CallTypeCompletion {
		return dispatch(ctx)
	}

	// The dispatch context is cancelled only when moderation rejects; on
	// the success path its lifetime is the request context, so a streaming
	// result stays readable after the race resolves.
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	modCtx, cancelMod := context.WithCancel(ctx)
	defer cancelMod()

	dispatchCh := make(chan raceResult[T], 1)
	go func() {
		value, err := dispatch(dispatchCtx)
		dispatchCh <- raceResult[T]{value: value, err: err}
	}()

	modCh := make(chan error, 1)
	go func() {
		g, gctx := errgroup.WithContext(modCtx)
		for _, m := range mods {
			m := m
			g.Go(func() error {
				if err := p.safeModerate(gctx, m, rc); err != nil {
					return p.classify(m.Name(), "moderation", err)
				}
				return nil
			})
		}
		modCh <- g.Wait()
	}()

	var zero T
	select {
	case res := <-dispatchCh:
		// Backend finished first; its outcome stands either way.
		return res.value, res.err

	case merr := <-modCh:
		if merr != nil {
			// Rejection wins: discard the backend result even if the
			// call would have succeeded.
			cancelDispatch()
			if he, ok := AsHookError(merr); ok {
				p.failHook(rc, he.Hook, "moderation", he.Err)
			} else if rej, ok := hooks.AsRejection(merr); ok {
				p.failHook(rc, rej.Hook, "moderation", merr)
			}
			return zero, merr
		}
		// All moderations passed; hand the request over to the dispatch.
		res := <-dispatchCh
		return res.value, res.err
	}
}
