// Package config provides unified configuration for the NeuroForge Kernel.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (NEUROFORGE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the kernel service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Runner        RunnerConfig        `yaml:"runner"`
	Memory        MemoryConfig        `yaml:"memory"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	RunHistory    RunHistoryConfig    `yaml:"run_history"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s, must cover the orchestrator's worst-case runtime
}

// RunnerConfig holds Sandbox Runner (C1) tuning, mirroring pkg/runner.Config.
type RunnerConfig struct {
	MaxConcurrency   int               `yaml:"max_concurrency"`    // default: 4
	MaxArtifactBytes int64             `yaml:"max_artifact_bytes"` // default: 25 MiB
	DefaultNetwork   string            `yaml:"default_network"`    // default: "none"
	MemoryLimit      string            `yaml:"memory_limit"`
	CPULimit         float64           `yaml:"cpu_limit"`
	PidsLimit        int64             `yaml:"pids_limit"` // default: 64
	TmpfsSize        string            `yaml:"tmpfs_size"`
	PipCachePath     string            `yaml:"pip_cache_path"`
	ImageOverrides   map[string]string `yaml:"image_overrides"` // language -> base image
}

// MemoryConfig holds Memory Adapter (C3) backend settings.
type MemoryConfig struct {
	QdrantURL      string `yaml:"qdrant_url"`    // required
	EmbeddingURL   string `yaml:"embedding_url"` // OpenAI-compatible /v1/embeddings endpoint
	EmbeddingModel string `yaml:"embedding_model"`
	Dims           int    `yaml:"dims"` // default: 384
}

// OrchestratorConfig holds Orchestrator (C6) tuning and the pluggable
// Generator/Repairer backend's connection details.
type OrchestratorConfig struct {
	MaxAttempts         int    `yaml:"max_attempts"`   // default: 3
	RetrieveTopK        int    `yaml:"retrieve_top_k"` // default: 5
	GeneratorURL        string `yaml:"generator_url"`  // required
	GeneratorAPIKey     string `yaml:"generator_api_key"`
	GeneratorAPIKeyFile string `yaml:"generator_api_key_file"` // _file variant for generator_api_key
	GeneratorModel      string `yaml:"generator_model"`
	RepairerModel       string `yaml:"repairer_model"` // empty means reuse generator_model
}

// RunHistoryConfig holds settings for the optional supplemental persistence
// of completed runs; see DESIGN.md.
type RunHistoryConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory", or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for the memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings for run history.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings for the optional bearer-token
// gate (see DESIGN.md Open Question resolutions).
type AuthConfig struct {
	Type      string          `yaml:"type"`       // "none" or "apikey", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`   // entries for type=apikey
	RateLimit RateLimitConfig `yaml:"rate_limit"` // per-tier submission caps
}

// RateLimitConfig caps task submissions per minute by service tier.
// Zero values disable limiting entirely.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"` // for tiers not in TierRPM; 0 = unlimited
	TierRPM    map[string]int `yaml:"tier_rpm"`    // tier name -> requests per minute
}

// Enabled reports whether any limit is configured.
func (rl RateLimitConfig) Enabled() bool {
	return rl.DefaultRPM > 0 || len(rl.TierRPM) > 0
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Runner: RunnerConfig{
			MaxConcurrency:   4,
			MaxArtifactBytes: 25 << 20,
			DefaultNetwork:   "none",
			PidsLimit:        64,
			ImageOverrides:   map[string]string{},
		},
		Memory: MemoryConfig{
			Dims: 384,
		},
		Orchestrator: OrchestratorConfig{
			MaxAttempts:  3,
			RetrieveTopK: 5,
		},
		RunHistory: RunHistoryConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
