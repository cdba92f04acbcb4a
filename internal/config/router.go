// Router configuration re-exports.
//
// DESIGN: Routing configuration is defined in internal/router/config.go.
// This file re-exports those types for use by the main Config struct.
// This keeps routing configuration close to the router implementation while
// allowing the config package to use the types without circular imports.
package config

import "github.com/remodlai/nova-gateway/internal/router"

// =============================================================================
// RE-EXPORTS FROM router PACKAGE
// =============================================================================

// Strategy constants - re-exported from router package.
const (
	StrategySimpleShuffle = router.StrategySimpleShuffle
	StrategyLeastBusy     = router.StrategyLeastBusy
	StrategyLatencyBased  = router.StrategyLatencyBased
	StrategyWeighted      = router.StrategyWeighted
)

// Cooldown store constants - re-exported from router package.
const (
	CooldownStoreMemory = router.CooldownStoreMemory
	CooldownStoreRedis  = router.CooldownStoreRedis
)

// Backend auth constants - re-exported from router package.
const (
	AuthAPIKey = router.AuthAPIKey
	AuthSigV4  = router.AuthSigV4
)

// =============================================================================
// TYPE ALIASES FOR YAML UNMARSHALING
// =============================================================================

// Duration is an alias for router.Duration, a YAML-parseable duration.
type Duration = router.Duration

// RouterConfig is an alias for router.Config for use in the main Config struct.
type RouterConfig = router.Config

// ModelConfig is an alias for router.ModelConfig.
type ModelConfig = router.ModelConfig

// BackendConfig is an alias for router.BackendConfig.
type BackendConfig = router.BackendConfig

// RedisConfig is an alias for router.RedisConfig.
type RedisConfig = router.RedisConfig
