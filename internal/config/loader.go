package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "irops.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom builds a Config from the given YAML path with the same
// hierarchy. A missing YAML file is fine; a malformed one is not.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the deployment, not a request
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "IROPS_PORT")
	setString(&cfg.Server.CORSOrigin, "IROPS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "IROPS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "IROPS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "IROPS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "IROPS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "IROPS_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.OpsData.URL, "IROPS_OPSDATA_URL")
	setString(&cfg.OpsData.APIKey, "IROPS_OPSDATA_API_KEY")
	setDuration(&cfg.OpsData.Timeout, "IROPS_OPSDATA_TIMEOUT")
	setString(&cfg.Logging.Level, "IROPS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "IROPS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "IROPS_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "IROPS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "IROPS_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.L1MaxSizeMB, "IROPS_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "IROPS_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "IROPS_CACHE_L2_TTL")

	// Orchestrator
	setDuration(&cfg.Orchestrator.AgentTimeout, "IROPS_ORCH_AGENT_TIMEOUT")
	setDuration(&cfg.Orchestrator.PhaseTimeout, "IROPS_ORCH_PHASE_TIMEOUT")
	setDuration(&cfg.Orchestrator.OverallTimeout, "IROPS_ORCH_OVERALL_TIMEOUT")
	setInt64(&cfg.Orchestrator.MaxConcurrent, "IROPS_ORCH_MAX_CONCURRENT")
	setInt(&cfg.Orchestrator.MaxAttemptsPerHop, "IROPS_ORCH_MAX_ATTEMPTS_PER_HOP")

	// Scoring
	setFloat64(&cfg.Scoring.Weights.Safety, "IROPS_SCORE_WEIGHT_SAFETY")
	setFloat64(&cfg.Scoring.Weights.Cost, "IROPS_SCORE_WEIGHT_COST")
	setFloat64(&cfg.Scoring.Weights.Passenger, "IROPS_SCORE_WEIGHT_PASSENGER")
	setFloat64(&cfg.Scoring.Weights.Network, "IROPS_SCORE_WEIGHT_NETWORK")
	setFloat64(&cfg.Scoring.UnchangedTolerance, "IROPS_SCORE_UNCHANGED_TOLERANCE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Orchestrator.MaxConcurrent < 1 {
		return errors.New("orchestrator.max_concurrent must be >= 1")
	}
	if len(cfg.Orchestrator.ChainFor("default")) == 0 {
		return errors.New("orchestrator.chains.default must list at least one backend")
	}
	if cfg.Scoring.MinScenarios < 1 || cfg.Scoring.MaxScenarios < cfg.Scoring.MinScenarios {
		return errors.New("scoring.min_scenarios/max_scenarios are inconsistent")
	}
	return nil
}

// setEnv overwrites dst with the parsed value of the env var, when the var
// is set and parses cleanly. Malformed values are ignored rather than fatal
// so a typo'd override falls back to the configured value.
func setEnv[T any](dst *T, key string, parse func(string) (T, error)) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if v, err := parse(raw); err == nil {
		*dst = v
	}
}

func setString(dst *string, key string) {
	setEnv(dst, key, func(s string) (string, error) { return s, nil })
}

func setInt(dst *int, key string) {
	setEnv(dst, key, strconv.Atoi)
}

func setInt32(dst *int32, key string) {
	setEnv(dst, key, func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	})
}

func setInt64(dst *int64, key string) {
	setEnv(dst, key, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func setFloat64(dst *float64, key string) {
	setEnv(dst, key, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func setBool(dst *bool, key string) {
	setEnv(dst, key, strconv.ParseBool)
}

func setDuration(dst *time.Duration, key string) {
	setEnv(dst, key, time.ParseDuration)
}
