// Package pipeline - notifier.go delivers failure notifications off the
// request path.
//
// DESIGN: A bounded job queue drained by one worker goroutine. Enqueueing
// never blocks: when the queue is full the notification is dropped with a
// warning, because a slow failure hook must not stall live requests. Stop
// drains the queue before returning.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/hooks"
)

// DefaultNotifyTimeout bounds one failure-hook invocation.
const DefaultNotifyTimeout = 10 * time.Second

// Notifier asynchronously invokes post-call-failure hooks.
type Notifier struct {
	registry *hooks.Registry
	jobs     chan notifyJob
	timeout  time.Duration
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type notifyJob struct {
	rc      *hooks.RequestContext
	callErr error
}

// NewNotifier creates and starts a notifier with the given queue size.
func NewNotifier(registry *hooks.Registry, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	n := &Notifier{
		registry: registry,
		jobs:     make(chan notifyJob, queueSize),
		timeout:  DefaultNotifyTimeout,
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

// Notify enqueues failure notifications for a request. Never blocks; a full
// queue drops the notification with a warning.
func (n *Notifier) Notify(rc *hooks.RequestContext, callErr error) {
	if len(n.registry.PostCallFailureHooks()) == 0 {
		return
	}
	select {
	case n.jobs <- notifyJob{rc: rc, callErr: callErr}:
	default:
		log.Warn().
			Str("request_id", rc.RequestID).
			Msg("failure_notification_dropped")
	}
}

// Stop drains the queue and stops the worker.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.jobs)
	})
	n.wg.Wait()
}

// worker delivers queued notifications sequentially, each hook bounded by
// the notify timeout.
func (n *Notifier) worker() {
	defer n.wg.Done()
	for job := range n.jobs {
		for _, h := range n.registry.PostCallFailureHooks() {
			n.deliver(h, job)
		}
	}
}

func (n *Notifier) deliver(h hooks.PostCallFailureHook, job notifyJob) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("request_id", job.rc.RequestID).
				Str("hook", h.Name()).
				Interface("panic", r).
				Msg("failure_hook_panicked")
		}
	}()

	if err := h.PostCallFailure(ctx, job.rc, job.callErr); err != nil {
		log.Warn().
			Str("request_id", job.rc.RequestID).
			Str("hook", h.Name()).
			Err(err).
			Msg("failure_hook_errored")
	}
}
