// Package router - balancer.go picks one deployment from a candidate list.
//
// DESIGN: A Balancer both picks and reserves: the returned deployment already
// has its in-flight counter incremented. Folding the reservation into the
// pick lets least-busy serialize the two under one mutex, so N concurrent
// selections over idle deployments spread evenly instead of stampeding the
// deployment that looked least busy to all of them.
package router

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Balancer selects exactly one deployment from a non-empty candidate list
// and reserves an in-flight slot on it. Implementations must be safe for
// concurrent use.
type Balancer interface {
	// Name returns the strategy name as used in configuration.
	Name() string

	// Pick returns one reserved deployment. Candidates is never empty.
	Pick(candidates []*Deployment) *Deployment
}

// balancerConstructors maps strategy names to constructors. Consulted once
// at startup; unknown names fail with the known set listed.
var balancerConstructors = map[string]func() Balancer{
	StrategySimpleShuffle: func() Balancer { return &shuffleBalancer{} },
	StrategyLeastBusy:     func() Balancer { return &leastBusyBalancer{} },
	StrategyLatencyBased:  func() Balancer { return &latencyBalancer{} },
	StrategyWeighted:      func() Balancer { return &weightedBalancer{} },
}

// NewBalancer builds the balancer for a strategy name.
func NewBalancer(strategy string) (Balancer, error) {
	ctor, ok := balancerConstructors[strategy]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (known: %v)", strategy, knownStrategies)
	}
	return ctor(), nil
}

// shuffleBalancer picks uniformly at random.
type shuffleBalancer struct{}

func (b *shuffleBalancer) Name() string { return StrategySimpleShuffle }

func (b *shuffleBalancer) Pick(candidates []*Deployment) *Deployment {
	d := candidates[rand.IntN(len(candidates))]
	d.acquire()
	return d
}

// leastBusyBalancer picks the deployment with the fewest in-flight requests,
// random among ties. Pick and reserve happen under one lock so concurrent
// callers observe each other's reservations.
type leastBusyBalancer struct {
	mu sync.Mutex
}

func (b *leastBusyBalancer) Name() string { return StrategyLeastBusy }

func (b *leastBusyBalancer) Pick(candidates []*Deployment) *Deployment {
	b.mu.Lock()
	defer b.mu.Unlock()

	var best []*Deployment
	min := int64(-1)
	for _, d := range candidates {
		n := d.InFlight()
		switch {
		case min < 0 || n < min:
			min = n
			best = best[:0]
			best = append(best, d)
		case n == min:
			best = append(best, d)
		}
	}
	d := best[rand.IntN(len(best))]
	d.acquire()
	return d
}

// latencyBalancer picks the deployment with the lowest moving-average
// latency, random among ties. Unsampled deployments report zero and so
// attract traffic first.
type latencyBalancer struct{}

func (b *latencyBalancer) Name() string { return StrategyLatencyBased }

func (b *latencyBalancer) Pick(candidates []*Deployment) *Deployment {
	var best []*Deployment
	min := -1.0
	for _, d := range candidates {
		l := d.LatencyEWMA()
		switch {
		case min < 0 || l < min:
			min = l
			best = best[:0]
			best = append(best, d)
		case l == min:
			best = append(best, d)
		}
	}
	d := best[rand.IntN(len(best))]
	d.acquire()
	return d
}

// weightedBalancer picks proportionally to static configured weights.
type weightedBalancer struct{}

func (b *weightedBalancer) Name() string { return StrategyWeighted }

func (b *weightedBalancer) Pick(candidates []*Deployment) *Deployment {
	total := 0
	for _, d := range candidates {
		total += d.Weight
	}
	if total <= 0 {
		d := candidates[rand.IntN(len(candidates))]
		d.acquire()
		return d
	}
	n := rand.IntN(total)
	for _, d := range candidates {
		n -= d.Weight
		if n < 0 {
			d.acquire()
			return d
		}
	}
	// Unreachable: n < total guarantees the loop picks a deployment.
	d := candidates[len(candidates)-1]
	d.acquire()
	return d
}
