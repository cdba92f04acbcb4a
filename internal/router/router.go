// Package router selects one backend deployment for each request.
//
// DESIGN: A logical model name maps to a pool of deployments. Routing is a
// straight pipeline per request:
//
//	lookup group → tag filter → cooldown filter → balancer pick+reserve
//
// The chosen deployment comes back inside a Selection whose Release feeds
// the live counters (in-flight, latency average, failure streak) that the
// least-busy and latency strategies read. Retry and fallback across
// deployments are deliberately not implemented here; an upstream failure is
// surfaced to the caller after it is counted.
package router

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Router routes requests onto deployments.
type Router struct {
	registry  *Registry
	balancer  Balancer
	cooldowns CooldownStore
	cfg       Config
}

// New builds a router from configuration and the deployment pool.
func New(cfg Config, models []ModelConfig) (*Router, error) {
	registry, err := NewRegistry(models)
	if err != nil {
		return nil, err
	}
	balancer, err := NewBalancer(cfg.StrategyName())
	if err != nil {
		return nil, err
	}
	cooldowns, err := newCooldownStore(&cfg)
	if err != nil {
		return nil, err
	}
	return &Router{
		registry:  registry,
		balancer:  balancer,
		cooldowns: cooldowns,
		cfg:       cfg,
	}, nil
}

// Selection is one routing decision. The deployment is reserved until
// Release is called exactly once with the call outcome.
type Selection struct {
	Deployment  *Deployment
	MatchedTags []string
	Strategy    string

	router   *Router
	released atomic.Bool
}

// Route picks a deployment for a logical model name and tag set. The
// returned selection holds an in-flight reservation on the deployment.
func (r *Router) Route(ctx context.Context, model string, tags []string) (*Selection, error) {
	group, err := r.registry.Group(model)
	if err != nil {
		return nil, err
	}

	candidates := group
	var matched []string
	if r.cfg.TagFilteringEnabled() {
		candidates, matched = filterByTags(group, tags)
		if len(candidates) == 0 {
			return nil, &NoDeploymentError{Model: model, Tags: tags}
		}
	}

	candidates = r.excludeCooled(ctx, candidates)

	d := r.balancer.Pick(candidates)
	log.Debug().
		Str("model", model).
		Str("deployment", d.ID).
		Str("strategy", r.balancer.Name()).
		Strs("matched_tags", matched).
		Int("candidates", len(candidates)).
		Msg("routed")

	return &Selection{
		Deployment:  d,
		MatchedTags: matched,
		Strategy:    r.balancer.Name(),
		router:      r,
	}, nil
}

// excludeCooled drops deployments in cooldown, unless that would empty the
// candidate list. Cooldown narrows choice; it never causes NoDeploymentFound.
func (r *Router) excludeCooled(ctx context.Context, candidates []*Deployment) []*Deployment {
	if r.cfg.AllowedFails <= 0 {
		return candidates
	}
	hot := make([]*Deployment, 0, len(candidates))
	for _, d := range candidates {
		cooled, err := r.cooldowns.Active(ctx, d.ID)
		if err != nil {
			log.Warn().Err(err).Str("deployment", d.ID).Msg("cooldown_check_failed")
			cooled = false
		}
		if !cooled {
			hot = append(hot, d)
		}
	}
	if len(hot) == 0 {
		return candidates
	}
	return hot
}

// Release returns the reservation and records the call outcome. A nil
// callErr counts as success and feeds the latency average; a non-nil one
// advances the failure streak and, past the configured threshold, places the
// deployment in cooldown. Safe to call once; later calls are no-ops.
func (s *Selection) Release(latency time.Duration, callErr error) {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	d := s.Deployment
	d.release()

	if callErr == nil {
		d.observeLatency(latency)
		d.recordSuccess()
		return
	}

	streak := d.recordFailure()
	cfg := &s.router.cfg
	if cfg.AllowedFails > 0 && streak >= int64(cfg.AllowedFails) {
		ttl := cfg.CooldownPeriod()
		if err := s.router.cooldowns.Put(context.Background(), d.ID, ttl); err != nil {
			log.Warn().Err(err).Str("deployment", d.ID).Msg("cooldown_put_failed")
			return
		}
		d.resetFailStreak()
		log.Warn().
			Str("deployment", d.ID).
			Int64("failures", streak).
			Dur("cooldown", ttl).
			Msg("deployment_cooling_down")
	}
}

// Abandon returns the reservation without recording an outcome. Used when
// the call was cancelled before the backend could answer, e.g. a moderation
// rejection; the deployment is neither credited nor blamed.
func (s *Selection) Abandon() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	s.Deployment.release()
}

// Reload atomically swaps in a new deployment table. In-flight selections
// keep their old deployment pointers.
func (r *Router) Reload(models []ModelConfig) error {
	if err := r.registry.Reload(models); err != nil {
		return err
	}
	log.Info().Int("deployments", r.registry.Len()).Msg("deployments_reloaded")
	return nil
}

// Registry exposes the deployment table for health reporting.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Strategy returns the active strategy name.
func (r *Router) Strategy() string {
	return r.balancer.Name()
}

// Close releases the cooldown store.
func (r *Router) Close() error {
	return r.cooldowns.Close()
}
