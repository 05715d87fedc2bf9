package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Orchestrator.GeneratorURL == "" {
		errs = append(errs, fmt.Errorf("orchestrator.generator_url is required"))
	}
	if c.Orchestrator.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.max_attempts must be > 0, got %d", c.Orchestrator.MaxAttempts))
	}

	if c.Memory.QdrantURL == "" {
		errs = append(errs, fmt.Errorf("memory.qdrant_url is required"))
	}
	if c.Memory.EmbeddingURL == "" {
		errs = append(errs, fmt.Errorf("memory.embedding_url is required"))
	}
	if c.Memory.Dims <= 0 {
		errs = append(errs, fmt.Errorf("memory.dims must be > 0, got %d", c.Memory.Dims))
	}

	if c.Runner.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("runner.max_concurrency must be > 0, got %d", c.Runner.MaxConcurrency))
	}

	switch c.RunHistory.Type {
	case "none", "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("run_history.type must be \"none\", \"memory\", or \"postgres\", got %q", c.RunHistory.Type))
	}
	if c.RunHistory.Type == "postgres" {
		if c.RunHistory.Postgres.DSN == "" && c.RunHistory.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("run_history.postgres.dsn or run_history.postgres.dsn_file is required when run_history.type is \"postgres\""))
		}
	}

	switch c.Auth.Type {
	case "none", "apikey":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\" or \"apikey\", got %q", c.Auth.Type))
	}
	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must be nonempty when auth.type is \"apikey\""))
	}

	return errors.Join(errs...)
}
