// Package config handles Hearth configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/hearth/config.yaml, /etc/hearth/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hearth", "config.yaml"))
	}

	paths = append(paths, "/etc/hearth/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Hearth configuration.
type Config struct {
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	Agent         AgentConfig         `yaml:"agent"`
	Cache         CacheConfig         `yaml:"cache"`
	Resolver      ResolverConfig      `yaml:"resolver"`
	Usage         UsageConfig         `yaml:"usage"`
	Schedules     []ScheduleTask      `yaml:"schedules"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
	LogFormat     string              `yaml:"log_format"` // text or json
}

// HomeAssistantConfig defines the hub connection settings.
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Configured reports whether a hub connection is fully specified.
func (c HomeAssistantConfig) Configured() bool {
	return c.URL != "" && c.Token != ""
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	// MaxHistory is the per-chat conversation turn bound. Oldest turns
	// are evicted first once exceeded.
	MaxHistory int `yaml:"max_history"`
	// MaxRounds caps tool-call rounds per run before the run aborts.
	MaxRounds int `yaml:"max_rounds"`
	// RunTimeoutSec bounds one full agent run, LLM and hub calls included.
	RunTimeoutSec int `yaml:"run_timeout_sec"`
}

// RunTimeout returns the run timeout as a duration.
func (c AgentConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSec) * time.Second
}

// CacheConfig controls the entity cache refresh policy.
type CacheConfig struct {
	RefreshIntervalMin int `yaml:"refresh_interval_minutes"`
}

// RefreshInterval returns the refresh interval as a duration.
func (c CacheConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMin) * time.Minute
}

// ResolverConfig tunes fuzzy entity matching.
type ResolverConfig struct {
	// MatchThreshold is the minimum token-overlap score for a fuzzy
	// candidate, in (0, 1]. The default 0.5 lets a two-word query
	// resolve when only one word hits, e.g. "foyer light" against a
	// light whose name shares no room word.
	MatchThreshold float64 `yaml:"match_threshold"`
	// MaxCandidates caps the candidate list returned on ambiguity.
	MaxCandidates int `yaml:"max_candidates"`
}

// PricingEntry holds per-model token prices in USD per million tokens.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// UsageConfig controls token usage tracking.
type UsageConfig struct {
	Pricing map[string]PricingEntry `yaml:"pricing"`
}

// ScheduleTask is a cron-fired stored prompt.
type ScheduleTask struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"` // 5-field: minute hour day month weekday
	Prompt  string `yaml:"prompt"`
	Enabled *bool  `yaml:"enabled"` // nil means enabled
}

// IsEnabled reports whether the task should be scheduled.
func (t ScheduleTask) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Load reads configuration from a YAML file. Environment variables in
// the file (e.g. ${HA_TOKEN}) are expanded before parsing so secrets
// can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with all tunables at their defaults.
// Connection settings (hub URL/token, API key) have no defaults and
// must come from the file.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Agent: AgentConfig{
			MaxHistory:    20,
			MaxRounds:     10,
			RunTimeoutSec: 120,
		},
		Cache: CacheConfig{
			RefreshIntervalMin: 360,
		},
		Resolver: ResolverConfig{
			MatchThreshold: 0.5,
			MaxCandidates:  5,
		},
		DataDir:   "data",
		LogFormat: "text",
	}
}

// Validate checks the configuration for values that would fail at
// runtime in confusing ways.
func (c *Config) Validate() error {
	if !c.HomeAssistant.Configured() {
		return fmt.Errorf("home_assistant.url and home_assistant.token are required")
	}
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if c.Agent.MaxHistory <= 0 {
		return fmt.Errorf("agent.max_history must be positive (got %d)", c.Agent.MaxHistory)
	}
	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be positive (got %d)", c.Agent.MaxRounds)
	}
	if c.Resolver.MatchThreshold <= 0 || c.Resolver.MatchThreshold > 1 {
		return fmt.Errorf("resolver.match_threshold must be in (0, 1] (got %g)", c.Resolver.MatchThreshold)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json (got %q)", c.LogFormat)
	}
	for _, t := range c.Schedules {
		if t.Name == "" || t.Cron == "" || t.Prompt == "" {
			return fmt.Errorf("schedule entries need name, cron, and prompt (task %q)", t.Name)
		}
	}
	return nil
}
