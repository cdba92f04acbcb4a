// Hook pipeline configuration.
//
// DESIGN: Hooks are listed in execution order; the name selects a registered
// constructor and params are passed through opaquely. The config layer only
// checks shape (names present, no duplicates); the hook factory rejects
// unknown names and bad params at startup.
package config

import "fmt"

// HookConfig declares one hook pipeline entry.
type HookConfig struct {
	// Name selects the hook constructor, e.g. "task_router" or "guardrail".
	Name string `yaml:"name"`

	// Params are constructor-specific settings.
	Params map[string]any `yaml:"params"`
}

// validateHooks checks the hook list shape.
func validateHooks(hooks []HookConfig) error {
	seen := make(map[string]bool, len(hooks))
	for i, h := range hooks {
		if h.Name == "" {
			return fmt.Errorf("hooks[%d]: name is required", i)
		}
		if seen[h.Name] {
			return fmt.Errorf("hooks[%d]: duplicate hook %q", i, h.Name)
		}
		seen[h.Name] = true
	}
	return nil
}
