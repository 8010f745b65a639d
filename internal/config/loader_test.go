package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Orchestrator.AgentTimeout != 45*time.Second {
		t.Errorf("expected agent timeout 45s, got %v", cfg.Orchestrator.AgentTimeout)
	}
	if len(cfg.Orchestrator.ChainFor("default")) == 0 {
		t.Error("expected a default backend chain")
	}
	if got := cfg.Scoring.Weights; got.Safety != 0.25 || got.Network != 0.25 {
		t.Errorf("expected equal default weights, got %+v", got)
	}
}

func TestChainFor(t *testing.T) {
	o := Orchestrator{Chains: map[string][]string{
		"default":         {"openai/gpt-4o"},
		"crew_compliance": {"anthropic/claude-sonnet-4-20250514", "openai/gpt-4o"},
	}}

	if got := o.ChainFor("crew_compliance"); len(got) != 2 {
		t.Errorf("expected dedicated chain, got %v", got)
	}
	if got := o.ChainFor("cargo"); len(got) != 1 || got[0] != "openai/gpt-4o" {
		t.Errorf("expected default chain fallback, got %v", got)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://ops.example.com"
orchestrator:
  phase_timeout: 2m
  chains:
    default: ["openai/gpt-4o-mini"]
scoring:
  max_scenarios: 4
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Orchestrator.PhaseTimeout != 2*time.Minute {
		t.Errorf("expected phase timeout 2m, got %v", cfg.Orchestrator.PhaseTimeout)
	}
	if got := cfg.Orchestrator.ChainFor("default"); len(got) != 1 || got[0] != "openai/gpt-4o-mini" {
		t.Errorf("expected overridden chain, got %v", got)
	}
	if cfg.Scoring.MaxScenarios != 4 {
		t.Errorf("expected max_scenarios 4, got %d", cfg.Scoring.MaxScenarios)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("IROPS_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("IROPS_ORCH_OVERALL_TIMEOUT", "12m")
	t.Setenv("IROPS_LOG_LEVEL", "warn")
	t.Setenv("IROPS_SCORE_WEIGHT_SAFETY", "0.4")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Orchestrator.OverallTimeout != 12*time.Minute {
		t.Errorf("expected overall timeout 12m, got %v", cfg.Orchestrator.OverallTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Scoring.Weights.Safety != 0.4 {
		t.Errorf("expected safety weight 0.4, got %v", cfg.Scoring.Weights.Safety)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty NATS URL",
			modify: func(c *Config) { c.NATS.URL = "" },
			errMsg: "nats.url is required",
		},
		{
			name:   "no default chain",
			modify: func(c *Config) { c.Orchestrator.Chains = nil },
			errMsg: "orchestrator.chains.default",
		},
		{
			name:   "inverted scenario bounds",
			modify: func(c *Config) { c.Scoring.MaxScenarios = 1 },
			errMsg: "min_scenarios",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)

			err := validate(&cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errMsg)
			}
		})
	}
}
