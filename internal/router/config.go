// Router configuration - strategies, deployments, cooldowns.
//
// DESIGN: Routing configuration lives next to the router implementation and
// is re-exported by the config package for YAML unmarshaling. A deployment
// entry binds a logical model name to one concrete backend; several entries
// may share the same model name to form a pool.
package router

import (
	"fmt"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// like "30s" or "2m". Bare integers are read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// Routing strategy names accepted in configuration.
const (
	StrategySimpleShuffle = "simple-shuffle"
	StrategyLeastBusy     = "least-busy"
	StrategyLatencyBased  = "latency-based"
	StrategyWeighted      = "weighted"
)

// knownStrategies is consulted by config validation and the balancer factory.
var knownStrategies = []string{
	StrategySimpleShuffle,
	StrategyLeastBusy,
	StrategyLatencyBased,
	StrategyWeighted,
}

// Cooldown store backends.
const (
	CooldownStoreMemory = "memory"
	CooldownStoreRedis  = "redis"
)

// Config contains router settings.
type Config struct {
	// Strategy selects the load balancer. Empty means simple-shuffle.
	Strategy string `yaml:"strategy"`

	// TagFiltering toggles tag-based candidate filtering. Nil means enabled.
	TagFiltering *bool `yaml:"tag_filtering"`

	// AllowedFails is the number of upstream failures a deployment may
	// accumulate before it is put in cooldown. Zero means cooldowns are off.
	AllowedFails int `yaml:"allowed_fails"`

	// Cooldown is how long a failing deployment stays out of rotation.
	Cooldown Duration `yaml:"cooldown"`

	// CooldownStore selects where cooldown state lives: memory or redis.
	// Redis lets several gateway instances share cooldown decisions.
	CooldownStore string `yaml:"cooldown_store"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains connection settings for the redis cooldown store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TagFilteringEnabled reports whether tag filtering is on (the default).
func (c *Config) TagFilteringEnabled() bool {
	return c.TagFiltering == nil || *c.TagFiltering
}

// StrategyName returns the configured strategy, defaulting to simple-shuffle.
func (c *Config) StrategyName() string {
	if c.Strategy == "" {
		return StrategySimpleShuffle
	}
	return c.Strategy
}

// CooldownPeriod returns the configured cooldown, defaulting to 30s.
func (c *Config) CooldownPeriod() time.Duration {
	if c.Cooldown == 0 {
		return 30 * time.Second
	}
	return c.Cooldown.Std()
}

// Validate checks router settings.
func (c *Config) Validate() error {
	if c.Strategy != "" {
		valid := false
		for _, s := range knownStrategies {
			if c.Strategy == s {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unknown router.strategy %q (known: %v)", c.Strategy, knownStrategies)
		}
	}
	if c.AllowedFails < 0 {
		return fmt.Errorf("router.allowed_fails must be >= 0, got %d", c.AllowedFails)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("router.cooldown must be >= 0, got %s", c.Cooldown)
	}
	switch c.CooldownStore {
	case "", CooldownStoreMemory:
	case CooldownStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("router.redis.addr is required when cooldown_store is redis")
		}
	default:
		return fmt.Errorf("unknown router.cooldown_store %q (known: memory, redis)", c.CooldownStore)
	}
	return nil
}

// Backend auth modes.
const (
	AuthAPIKey = "api_key"
	AuthSigV4  = "sigv4"
)

// ModelConfig declares one deployment of a logical model.
type ModelConfig struct {
	// ID optionally pins a stable deployment ID. Derived when empty.
	ID string `yaml:"id"`

	// ModelName is the logical model name clients request.
	ModelName string `yaml:"model_name"`

	Backend BackendConfig `yaml:"backend"`

	// Tags route requests to deployment subsets. The reserved tag "default"
	// marks deployments eligible for untagged requests.
	Tags []string `yaml:"tags"`

	// Weight biases the weighted strategy. Zero means 1.
	Weight int `yaml:"weight"`
}

// BackendConfig describes how to reach one backend endpoint.
type BackendConfig struct {
	// BaseURL is the backend root, e.g. https://nova-a.internal:8443.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a bearer token for api_key auth.
	APIKey string `yaml:"api_key"`

	// Model overrides the model id sent upstream. Empty keeps the logical name.
	Model string `yaml:"model"`

	// Auth is api_key (default) or sigv4 for AWS-signed backends.
	Auth string `yaml:"auth"`

	// Region is required for sigv4 auth.
	Region string `yaml:"region"`

	// Timeout bounds one backend call. Zero uses the client default.
	Timeout Duration `yaml:"timeout"`
}

// Validate checks one deployment entry.
func (m *ModelConfig) Validate() error {
	if m.ModelName == "" {
		return fmt.Errorf("models[].model_name is required")
	}
	if m.Backend.BaseURL == "" {
		return fmt.Errorf("model %q: backend.base_url is required", m.ModelName)
	}
	u, err := url.Parse(m.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("model %q: invalid backend.base_url %q", m.ModelName, m.Backend.BaseURL)
	}
	switch m.Backend.Auth {
	case "", AuthAPIKey:
	case AuthSigV4:
		if m.Backend.Region == "" {
			return fmt.Errorf("model %q: backend.region is required for sigv4 auth", m.ModelName)
		}
	default:
		return fmt.Errorf("model %q: unknown backend.auth %q (known: api_key, sigv4)", m.ModelName, m.Backend.Auth)
	}
	if m.Weight < 0 {
		return fmt.Errorf("model %q: weight must be >= 0, got %d", m.ModelName, m.Weight)
	}
	return nil
}
