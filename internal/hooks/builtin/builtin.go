// Package builtin assembles the hook pipeline from configuration.
//
// DESIGN: A fixed table maps configured hook names to constructors; unknown
// names fail at startup listing the known set. No reflection, no dynamic
// lookup - adding a hook means adding a constructor here.
package builtin

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/config"
	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/hooks/audit"
	"github.com/remodlai/nova-gateway/internal/hooks/guardrail"
	"github.com/remodlai/nova-gateway/internal/hooks/taskrouting"
	"github.com/remodlai/nova-gateway/internal/hooks/usage"
	"github.com/remodlai/nova-gateway/internal/monitoring"
)

// Deps carries shared collaborators into hook constructors.
type Deps struct {
	Metrics *monitoring.MetricsCollector
}

// constructors is the name → constructor table.
var constructors = map[string]func(params map[string]any, deps Deps) (hooks.Hook, error){
	taskrouting.HookName: func(params map[string]any, _ Deps) (hooks.Hook, error) {
		return taskrouting.New(params)
	},
	guardrail.HookName: func(params map[string]any, _ Deps) (hooks.Hook, error) {
		return guardrail.New(params)
	},
	usage.HookName: func(params map[string]any, deps Deps) (hooks.Hook, error) {
		return usage.New(params, deps.Metrics)
	},
	audit.HookName: func(params map[string]any, _ Deps) (hooks.Hook, error) {
		return audit.New(params)
	},
}

// Known returns the known hook names, sorted.
func Known() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates one hook by configured name.
func New(name string, params map[string]any, deps Deps) (hooks.Hook, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown hook %q (known: %v)", name, Known())
	}
	return ctor(params, deps)
}

// BuildRegistry instantiates and registers every configured hook, in config
// order. The resulting registry is the process-wide hook table; it is built
// once at startup and not mutated afterwards.
func BuildRegistry(cfgs []config.HookConfig, deps Deps) (*hooks.Registry, error) {
	registry := hooks.NewRegistry()
	for i, hc := range cfgs {
		h, err := New(hc.Name, hc.Params, deps)
		if err != nil {
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
		if err := registry.Register(h); err != nil {
			return nil, fmt.Errorf("hooks[%d]: %w", i, err)
		}
		log.Info().
			Str("hook", h.Name()).
			Strs("capabilities", hooks.Capabilities(h)).
			Msg("hook_registered")
	}
	return registry, nil
}
