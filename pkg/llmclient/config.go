package llmclient

import "time"

// Config holds configuration for the Generator/Repairer backend,
// mirroring config.OrchestratorConfig's generator_* fields.
type Config struct {
	// BaseURL is the OpenAI-compatible server URL, e.g. "http://localhost:8000".
	BaseURL string

	// APIKey authenticates against the backend (optional).
	APIKey string

	// GeneratorModel names the model used for WRITE calls.
	GeneratorModel string

	// RepairerModel names the model used for REPAIR calls. Empty means
	// reuse GeneratorModel (config.OrchestratorConfig.RepairerModel).
	RepairerModel string

	// Timeout bounds a single HTTP request. Defaults to 120s.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults for the given
// backend URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
	}
}

func (c Config) repairerModel() string {
	if c.RepairerModel != "" {
		return c.RepairerModel
	}
	return c.GeneratorModel
}
