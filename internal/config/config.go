// Package config loads the gateway's YAML configuration file and applies
// RANTS_-prefixed environment overrides, per spec.md §6.
package config

// ServerConfig is the `server{}` section.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LimitsConfig is the `limits{}` section.
type LimitsConfig struct {
	MaxToolIterations   int     `yaml:"max_tool_iterations"`
	MaxWallclockSeconds float64 `yaml:"max_wallclock_seconds"`
	MaxDepth            int     `yaml:"max_depth"`
	WorkspaceRoot       string  `yaml:"workspace_root"`
	ToolOutputMaxBytes  int     `yaml:"tool_output_max_bytes"`
	WebfetchMaxBytes    int     `yaml:"webfetch_max_bytes"`
}

// APIKeyConfig is one entry of `auth.api_keys[]`.
type APIKeyConfig struct {
	Key      string `yaml:"key"`
	TenantID string `yaml:"tenant_id"`
	Name     string `yaml:"name"`
}

// AuthConfig is the `auth{}` section.
type AuthConfig struct {
	Enabled bool           `yaml:"enabled"`
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// RateLimitsConfig is the `rate_limits{}` section.
type RateLimitsConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// ResilienceConfig is the `resilience{}` section.
type ResilienceConfig struct {
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`
	MaxRetries            int     `yaml:"max_retries"`
	BackoffSeconds        float64 `yaml:"backoff_seconds"`
}

// RLMInstanceConfig is one entry of `rlm{}`, e.g. `rants_one`.
type RLMInstanceConfig struct {
	Name         string `yaml:"name"`
	Environment  string `yaml:"environment"`
	MaxIterations int   `yaml:"max_iterations"`
	MaxDepth     int    `yaml:"max_depth"`
}

// RLMConfig is the `rlm{}` section, keyed by RLM instance name.
type RLMConfig map[string]RLMInstanceConfig

// ModelEndpointConfig describes one endpoint of `models{}`.
type ModelEndpointConfig struct {
	Provider     string         `yaml:"provider"`
	BaseURL      string         `yaml:"base_url"`
	Model        string         `yaml:"model"`
	APIKey       string         `yaml:"api_key"`
	Capabilities []string       `yaml:"capabilities"`
	Parameters   map[string]any `yaml:"parameters"`
}

// ModelsConfig is the `models{}` section.
type ModelsConfig struct {
	Generator       ModelEndpointConfig  `yaml:"generator"`
	ToolCompiler    ModelEndpointConfig  `yaml:"tool_compiler"`
	CodeInterpreter *ModelEndpointConfig `yaml:"code_interpreter"`
	Vision          *ModelEndpointConfig `yaml:"vision"`
}

// StateConfig is the `state{}` section.
type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Config is the top-level configuration document (spec.md §6).
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Limits     LimitsConfig     `yaml:"limits"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
	Resilience ResilienceConfig `yaml:"resilience"`
	RLM        RLMConfig        `yaml:"rlm"`
	Models     ModelsConfig     `yaml:"models"`
	State      StateConfig      `yaml:"state"`
}

// Defaults returns a Config with the gateway's baseline values, overridden
// by whatever the loaded YAML/env actually set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Limits: LimitsConfig{
			MaxToolIterations:   10,
			MaxWallclockSeconds: 120,
			MaxDepth:            2,
			WorkspaceRoot:       ".",
			ToolOutputMaxBytes:  200_000,
			WebfetchMaxBytes:    1_000_000,
		},
		RateLimits: RateLimitsConfig{Enabled: true, RequestsPerMinute: 60, Burst: 10},
		Resilience: ResilienceConfig{RequestTimeoutSeconds: 60, MaxRetries: 1, BackoffSeconds: 1},
		State:      StateConfig{SQLitePath: "rants.db"},
	}
}
