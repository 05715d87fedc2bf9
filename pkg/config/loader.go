package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, NEUROFORGE_CONFIG env, ./config.yaml, /etc/neuroforge/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. NEUROFORGE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/neuroforge/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("NEUROFORGE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/neuroforge/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps NEUROFORGE_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEUROFORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("NEUROFORGE_RUNNER_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Runner.MaxConcurrency = n
		}
	}
	if v := os.Getenv("NEUROFORGE_RUNNER_MAX_ARTIFACT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Runner.MaxArtifactBytes = n
		}
	}
	if v := os.Getenv("NEUROFORGE_RUNNER_DEFAULT_NETWORK"); v != "" {
		cfg.Runner.DefaultNetwork = v
	}
	if v := os.Getenv("NEUROFORGE_RUNNER_PIP_CACHE_PATH"); v != "" {
		cfg.Runner.PipCachePath = v
	}
	if v := os.Getenv("NEUROFORGE_QDRANT_URL"); v != "" {
		cfg.Memory.QdrantURL = v
	}
	if v := os.Getenv("NEUROFORGE_EMBEDDING_URL"); v != "" {
		cfg.Memory.EmbeddingURL = v
	}
	if v := os.Getenv("NEUROFORGE_EMBEDDING_MODEL"); v != "" {
		cfg.Memory.EmbeddingModel = v
	}
	if v := os.Getenv("NEUROFORGE_GENERATOR_URL"); v != "" {
		cfg.Orchestrator.GeneratorURL = v
	}
	if v := os.Getenv("NEUROFORGE_GENERATOR_API_KEY"); v != "" {
		cfg.Orchestrator.GeneratorAPIKey = v
	}
	if v := os.Getenv("NEUROFORGE_GENERATOR_MODEL"); v != "" {
		cfg.Orchestrator.GeneratorModel = v
	}
	if v := os.Getenv("NEUROFORGE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Orchestrator.MaxAttempts = n
		}
	}
	if v := os.Getenv("NEUROFORGE_RUN_HISTORY"); v != "" {
		cfg.RunHistory.Type = v
	}
	if v := os.Getenv("NEUROFORGE_RUN_HISTORY_MAX_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.RunHistory.MaxSize = size
		}
	}
	if v := os.Getenv("NEUROFORGE_RUN_HISTORY_DSN"); v != "" {
		cfg.RunHistory.Postgres.DSN = v
	}
	if v := os.Getenv("NEUROFORGE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("NEUROFORGE_AUTH_DEFAULT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Auth.RateLimit.DefaultRPM = n
		}
	}

	// NEUROFORGE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("NEUROFORGE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is
// empty and the file field is set, the file is read, whitespace is
// trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Orchestrator.GeneratorAPIKeyFile != "" && cfg.Orchestrator.GeneratorAPIKey == "" {
		val, err := readSecretFile(cfg.Orchestrator.GeneratorAPIKeyFile)
		if err != nil {
			return fmt.Errorf("orchestrator.generator_api_key_file: %w", err)
		}
		cfg.Orchestrator.GeneratorAPIKey = val
	}

	if cfg.RunHistory.Postgres.DSNFile != "" && cfg.RunHistory.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.RunHistory.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("run_history.postgres.dsn_file: %w", err)
		}
		cfg.RunHistory.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
