package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
home_assistant:
  url: http://hub.local:8123
  token: test-token
anthropic:
  api_key: sk-test
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HomeAssistant.URL != "http://hub.local:8123" {
		t.Errorf("url = %q", cfg.HomeAssistant.URL)
	}
	if cfg.Agent.MaxRounds != 10 {
		t.Errorf("default max_rounds = %d, want 10", cfg.Agent.MaxRounds)
	}
	if cfg.Resolver.MatchThreshold != 0.5 {
		t.Errorf("default match_threshold = %g, want 0.5", cfg.Resolver.MatchThreshold)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("HEARTH_TEST_TOKEN", "secret-from-env")

	cfg, err := Load(writeConfig(t, `
home_assistant:
  url: http://hub.local:8123
  token: ${HEARTH_TEST_TOKEN}
anthropic:
  api_key: sk-test
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomeAssistant.Token != "secret-from-env" {
		t.Errorf("token = %q, want env expansion", cfg.HomeAssistant.Token)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing hub", func(c *Config) { c.HomeAssistant.Token = "" }},
		{"missing api key", func(c *Config) { c.Anthropic.APIKey = "" }},
		{"zero rounds", func(c *Config) { c.Agent.MaxRounds = 0 }},
		{"zero history", func(c *Config) { c.Agent.MaxHistory = 0 }},
		{"threshold too high", func(c *Config) { c.Resolver.MatchThreshold = 1.5 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"schedule without prompt", func(c *Config) {
			c.Schedules = []ScheduleTask{{Name: "morning", Cron: "0 7 * * *"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.HomeAssistant = HomeAssistantConfig{URL: "http://hub", Token: "tok"}
			cfg.Anthropic.APIKey = "sk-test"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestScheduleEnabledDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
schedules:
  - name: evening check
    cron: "0 21 * * *"
    prompt: "Are all doors locked?"
  - name: disabled one
    cron: "0 9 * * *"
    prompt: "Morning report"
    enabled: false
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Schedules) != 2 {
		t.Fatalf("schedules = %d, want 2", len(cfg.Schedules))
	}
	if !cfg.Schedules[0].IsEnabled() {
		t.Error("first schedule should default to enabled")
	}
	if cfg.Schedules[1].IsEnabled() {
		t.Error("second schedule should be disabled")
	}
}

func TestParseLogLevel(t *testing.T) {
	if _, err := ParseLogLevel("TRACE"); err != nil {
		t.Errorf("trace should parse: %v", err)
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("unknown level should error")
	}
	lvl, err := ParseLogLevel("")
	if err != nil || lvl.String() != "INFO" {
		t.Errorf("empty level = %v, %v; want INFO", lvl, err)
	}
}
