// Package hooks - registry.go holds registered hooks in execution order.
//
// DESIGN: Registration happens once at startup, in config order. Register
// detects every capability a hook implements with one type assertion each and
// appends the hook to the matching typed slice. Request-path accessors return
// those precomputed slices, so executing a pipeline never probes interfaces.
package hooks

import (
	"fmt"
	"sync"
)

// Registry holds registered hooks and their capability slices.
type Registry struct {
	mu    sync.RWMutex
	order []Hook
	names map[string]bool

	preCall     []PreCallHook
	moderation  []ModerationHook
	postSuccess []PostCallSuccessHook
	postFailure []PostCallFailureHook
	stream      []StreamHook
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register adds a hook and records its capabilities. Hooks execute in
// registration order within each capability. Duplicate names are rejected.
// A hook with no capabilities is rejected as a configuration mistake.
func (r *Registry) Register(h Hook) error {
	if h == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	name := h.Name()
	if name == "" {
		return fmt.Errorf("hook name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[name] {
		return fmt.Errorf("hook %q already registered", name)
	}

	caps := 0
	if ph, ok := h.(PreCallHook); ok {
		r.preCall = append(r.preCall, ph)
		caps++
	}
	if mh, ok := h.(ModerationHook); ok {
		r.moderation = append(r.moderation, mh)
		caps++
	}
	if sh, ok := h.(PostCallSuccessHook); ok {
		r.postSuccess = append(r.postSuccess, sh)
		caps++
	}
	if fh, ok := h.(PostCallFailureHook); ok {
		r.postFailure = append(r.postFailure, fh)
		caps++
	}
	if st, ok := h.(StreamHook); ok {
		r.stream = append(r.stream, st)
		caps++
	}
	if caps == 0 {
		return fmt.Errorf("hook %q implements no capabilities", name)
	}

	r.names[name] = true
	r.order = append(r.order, h)
	return nil
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Hooks returns all hooks in registration order.
func (r *Registry) Hooks() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order
}

// PreCallHooks returns hooks with the pre-call capability, in order.
func (r *Registry) PreCallHooks() []PreCallHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.preCall
}

// ModerationHooks returns hooks with the moderation capability, in order.
func (r *Registry) ModerationHooks() []ModerationHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.moderation
}

// PostCallSuccessHooks returns hooks with the success capability, in order.
func (r *Registry) PostCallSuccessHooks() []PostCallSuccessHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.postSuccess
}

// PostCallFailureHooks returns hooks with the failure capability, in order.
func (r *Registry) PostCallFailureHooks() []PostCallFailureHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.postFailure
}

// StreamHooks returns hooks with the stream capability, in order.
func (r *Registry) StreamHooks() []StreamHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stream
}

// Capabilities lists the capability names a hook implements. Used for
// startup logging.
func Capabilities(h Hook) []string {
	var caps []string
	if _, ok := h.(PreCallHook); ok {
		caps = append(caps, "pre_call")
	}
	if _, ok := h.(ModerationHook); ok {
		caps = append(caps, "moderation")
	}
	if _, ok := h.(PostCallSuccessHook); ok {
		caps = append(caps, "post_call_success")
	}
	if _, ok := h.(PostCallFailureHook); ok {
		caps = append(caps, "post_call_failure")
	}
	if _, ok := h.(StreamHook); ok {
		caps = append(caps, "stream")
	}
	return caps
}
