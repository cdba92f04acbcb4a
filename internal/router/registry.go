// Package router - registry.go maps logical model names to deployment groups.
//
// DESIGN: The whole index is an immutable value behind an atomic pointer.
// Reload builds a fresh index and swaps it in one store, so new requests see
// the new table while in-flight requests keep routing and releasing against
// the deployment objects they already hold.
package router

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Registry holds the deployment pool, indexed by logical model name.
type Registry struct {
	index atomic.Pointer[deploymentIndex]
}

// deploymentIndex is one immutable generation of the deployment table.
type deploymentIndex struct {
	groups map[string][]*Deployment
	count  int
}

// NewRegistry builds a registry from validated deployment entries.
func NewRegistry(models []ModelConfig) (*Registry, error) {
	idx, err := buildIndex(models)
	if err != nil {
		return nil, err
	}
	r := &Registry{}
	r.index.Store(idx)
	return r, nil
}

// buildIndex constructs one index generation.
func buildIndex(models []ModelConfig) (*deploymentIndex, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("at least one deployment is required")
	}
	idx := &deploymentIndex{groups: make(map[string][]*Deployment)}
	seen := make(map[string]bool, len(models))
	for i := range models {
		d := newDeployment(models[i])
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate deployment id %q", d.ID)
		}
		seen[d.ID] = true
		idx.groups[d.ModelName] = append(idx.groups[d.ModelName], d)
		idx.count++
	}
	return idx, nil
}

// Reload replaces the deployment table atomically. In-flight requests keep
// their old deployment pointers; their counters are simply dropped with the
// old generation once they release.
func (r *Registry) Reload(models []ModelConfig) error {
	idx, err := buildIndex(models)
	if err != nil {
		return err
	}
	r.index.Store(idx)
	return nil
}

// Group returns the deployments serving a logical model name.
func (r *Registry) Group(model string) ([]*Deployment, error) {
	group := r.index.Load().groups[model]
	if len(group) == 0 {
		return nil, &NoDeploymentError{Model: model}
	}
	return group, nil
}

// Models returns the known logical model names, sorted.
func (r *Registry) Models() []string {
	idx := r.index.Load()
	names := make([]string, 0, len(idx.groups))
	for name := range idx.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deployments returns every deployment in the current generation.
func (r *Registry) Deployments() []*Deployment {
	idx := r.index.Load()
	all := make([]*Deployment, 0, idx.count)
	for _, name := range r.Models() {
		all = append(all, idx.groups[name]...)
	}
	return all
}

// Len returns the total number of deployments.
func (r *Registry) Len() int {
	return r.index.Load().count
}
