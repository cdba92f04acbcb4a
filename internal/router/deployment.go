// Package router - deployment.go defines one backend deployment and its
// live counters.
//
// DESIGN: Counters are lock-free. In-flight is an atomic int64; the latency
// moving average stores float64 bits in an atomic uint64 updated by CAS.
// Several gateway goroutines update the same deployment concurrently.
package router

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// DefaultTag marks deployments eligible for requests that carry no tags.
const DefaultTag = "default"

// latencyAlpha is the smoothing factor of the latency moving average. Higher
// values react faster to latency shifts.
const latencyAlpha = 0.3

// Deployment is one concrete backend serving a logical model name.
// Fields are immutable after construction; counters are internally atomic.
type Deployment struct {
	ID        string
	ModelName string
	Backend   BackendConfig
	Tags      []string
	Weight    int

	inFlight    atomic.Int64
	latencyBits atomic.Uint64
	failStreak  atomic.Int64
	successes   atomic.Int64
	failures    atomic.Int64
}

// newDeployment builds a Deployment from a validated config entry.
func newDeployment(cfg ModelConfig) *Deployment {
	id := cfg.ID
	if id == "" {
		id = deriveID(cfg)
	}
	weight := cfg.Weight
	if weight == 0 {
		weight = 1
	}
	return &Deployment{
		ID:        id,
		ModelName: cfg.ModelName,
		Backend:   cfg.Backend,
		Tags:      append([]string(nil), cfg.Tags...),
		Weight:    weight,
	}
}

// deriveID builds a stable deployment ID from the fields that distinguish one
// deployment from another within a model group.
func deriveID(cfg ModelConfig) string {
	h := sha256.Sum256([]byte(cfg.ModelName + "|" + cfg.Backend.BaseURL + "|" + cfg.Backend.Model))
	return fmt.Sprintf("%s-%s", cfg.ModelName, hex.EncodeToString(h[:])[:8])
}

// UpstreamModel returns the model id sent to the backend.
func (d *Deployment) UpstreamModel() string {
	if d.Backend.Model != "" {
		return d.Backend.Model
	}
	return d.ModelName
}

// HasTag reports whether the deployment carries the tag.
func (d *Deployment) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// InFlight returns the current number of requests on this deployment.
func (d *Deployment) InFlight() int64 {
	return d.inFlight.Load()
}

// LatencyEWMA returns the moving-average backend latency in seconds. Zero
// means no samples yet.
func (d *Deployment) LatencyEWMA() float64 {
	return math.Float64frombits(d.latencyBits.Load())
}

// Stats returns success and failure totals.
func (d *Deployment) Stats() (successes, failures int64) {
	return d.successes.Load(), d.failures.Load()
}

func (d *Deployment) acquire() { d.inFlight.Add(1) }

func (d *Deployment) release() { d.inFlight.Add(-1) }

// observeLatency folds one latency sample into the moving average.
func (d *Deployment) observeLatency(latency time.Duration) {
	sample := latency.Seconds()
	for {
		old := d.latencyBits.Load()
		current := math.Float64frombits(old)
		next := sample
		if current != 0 {
			next = latencyAlpha*sample + (1-latencyAlpha)*current
		}
		if d.latencyBits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// recordSuccess resets the failure streak.
func (d *Deployment) recordSuccess() {
	d.successes.Add(1)
	d.failStreak.Store(0)
}

// recordFailure returns the new consecutive failure count.
func (d *Deployment) recordFailure() int64 {
	d.failures.Add(1)
	return d.failStreak.Add(1)
}

func (d *Deployment) resetFailStreak() {
	d.failStreak.Store(0)
}
