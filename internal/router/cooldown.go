// Package router - cooldown.go tracks deployments pulled out of rotation.
//
// DESIGN: Cooldown state lives behind a small TTL-store interface so a single
// gateway can keep it in memory while multi-instance deployments share it
// through Redis. The memory store sweeps expired entries with a background
// goroutine stopped via a channel on Close.
package router

import (
	"context"
	"sync"
	"time"
)

// CooldownStore records deployments that recently crossed the failure
// threshold. Entries expire on their own after the configured TTL.
type CooldownStore interface {
	// Put places a deployment in cooldown for ttl.
	Put(ctx context.Context, deploymentID string, ttl time.Duration) error

	// Active reports whether a deployment is currently cooling down.
	Active(ctx context.Context, deploymentID string) (bool, error)

	// Close releases store resources.
	Close() error
}

// MemoryCooldowns is the in-process CooldownStore.
type MemoryCooldowns struct {
	mu       sync.RWMutex
	entries  map[string]time.Time
	stopChan chan struct{}
	stopped  bool
}

// NewMemoryCooldowns creates an in-memory cooldown store.
func NewMemoryCooldowns() *MemoryCooldowns {
	s := &MemoryCooldowns{
		entries:  make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Put implements CooldownStore.
func (s *MemoryCooldowns) Put(_ context.Context, deploymentID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[deploymentID] = time.Now().Add(ttl)
	return nil
}

// Active implements CooldownStore.
func (s *MemoryCooldowns) Active(_ context.Context, deploymentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.entries[deploymentID]
	return ok && time.Now().Before(until), nil
}

// Close stops the cleanup goroutine.
func (s *MemoryCooldowns) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
	}
	return nil
}

// cleanup periodically removes expired entries.
func (s *MemoryCooldowns) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, until := range s.entries {
				if now.After(until) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		case <-s.stopChan:
			return
		}
	}
}
