package runner

import (
	"os"
	"strconv"
	"strings"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// Config tunes the container lifecycle. Zero-value fields fall back to
// the defaults Defaults() returns; LoadConfigFromEnv layers environment variables over
// those defaults.
type Config struct {
	// MaxConcurrency bounds simultaneous container runs (default 4).
	MaxConcurrency int

	// MaxArtifactBytes caps the zipped workspace returned inline
	// (default 25 MiB); larger archives are replaced by a note.
	MaxArtifactBytes int64

	// DefaultNetwork is the Docker network mode used when a run does not
	// specify one (default "none").
	DefaultNetwork string

	// MemoryLimit is a Docker-style memory limit string (e.g. "512m").
	// Empty means unconstrained.
	MemoryLimit string

	// CPULimit is the fractional CPU cap (e.g. 1.5). Zero means
	// unconstrained.
	CPULimit float64

	// PidsLimit caps the number of processes inside the container
	// (default 64). Zero or negative disables the cap.
	PidsLimit int64

	// TmpfsSize sizes the /tmp tmpfs mount (e.g. "64m"). Empty disables
	// the tmpfs mount.
	TmpfsSize string

	// ExtraDockerFlags holds additional operator-supplied container
	// flags, split on whitespace (no shell quoting). Supported: --cap-add, --cap-drop,
	// --security-opt (value attached with "=" or as the next token) and
	// --read-only. An unrecognized flag fails the run.
	ExtraDockerFlags []string

	// PipCachePath, when set, is bind-mounted read-write at
	// /root/.cache/pip for languages that support requirements.
	PipCachePath string

	// ImageOverrides maps a Language to a replacement base image.
	ImageOverrides map[task.Language]string

	// WorkspaceRoot is the parent directory for per-run temp workspaces.
	// Empty uses os.TempDir().
	WorkspaceRoot string
}

// Defaults returns the built-in Config values.
func Defaults() Config {
	return Config{
		MaxConcurrency:   4,
		MaxArtifactBytes: 25 << 20,
		DefaultNetwork:   "none",
		PidsLimit:        64,
		ImageOverrides:   map[task.Language]string{},
	}
}

// LoadConfigFromEnv layers SANDBOX_* environment variables over Defaults.
func LoadConfigFromEnv() Config {
	cfg := Defaults()

	if v := os.Getenv("SANDBOX_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrency = n
		}
	}
	if v := os.Getenv("SANDBOX_MAX_ARTIFACT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxArtifactBytes = n
		}
	}
	if v := os.Getenv("SANDBOX_DOCKER_NETWORK"); v != "" {
		cfg.DefaultNetwork = v
	}
	if v := os.Getenv("SANDBOX_MEMORY_LIMIT"); v != "" {
		cfg.MemoryLimit = v
	}
	if v := os.Getenv("SANDBOX_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.CPULimit = f
		}
	}
	if v := os.Getenv("SANDBOX_PIDS_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.PidsLimit = n
		}
	}
	if v := os.Getenv("SANDBOX_TMPFS_SIZE"); v != "" {
		cfg.TmpfsSize = v
	}
	if v := os.Getenv("SANDBOX_EXTRA_DOCKER_FLAGS"); v != "" {
		cfg.ExtraDockerFlags = strings.Fields(v)
	}
	if v := os.Getenv("SANDBOX_PIP_CACHE_PATH"); v != "" {
		cfg.PipCachePath = v
	}
	for _, lang := range task.Languages {
		key := "SANDBOX_IMAGE_" + strings.ToUpper(string(lang))
		if v := os.Getenv(key); v != "" {
			cfg.ImageOverrides[lang] = v
		}
	}

	return cfg
}
