// Command server runs the NeuroForge Kernel: the WRITE/EXECUTE/REPAIR
// orchestration state machine, the Docker-backed Sandbox Runner, and the
// HTTP transport in one process.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (-config flag or the discovery paths pkg/config documents), then
// NEUROFORGE_* environment overrides. Run with -config /etc/neuroforge.yaml
// or point NEUROFORGE_GENERATOR_URL etc. at the backends directly.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroforge-dev/kernel/pkg/auth"
	"github.com/neuroforge-dev/kernel/pkg/auth/apikey"
	"github.com/neuroforge-dev/kernel/pkg/config"
	"github.com/neuroforge-dev/kernel/pkg/debuglog"
	"github.com/neuroforge-dev/kernel/pkg/llmclient"
	"github.com/neuroforge-dev/kernel/pkg/memory"
	"github.com/neuroforge-dev/kernel/pkg/observability"
	"github.com/neuroforge-dev/kernel/pkg/orchestrator"
	"github.com/neuroforge-dev/kernel/pkg/runhistory"
	historymem "github.com/neuroforge-dev/kernel/pkg/runhistory/memory"
	historypg "github.com/neuroforge-dev/kernel/pkg/runhistory/postgres"
	"github.com/neuroforge-dev/kernel/pkg/runner"
	"github.com/neuroforge-dev/kernel/pkg/task"
	"github.com/neuroforge-dev/kernel/pkg/transport"
	transporthttp "github.com/neuroforge-dev/kernel/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debuglog.Init("", "")

	// Sandbox Runner.
	sandbox := runner.New(runnerConfig(cfg.Runner))

	// Memory Adapter.
	backend := memory.NewQdrantBackend(cfg.Memory.QdrantURL)
	embedding := memory.NewHTTPEmbeddingClient(cfg.Memory.EmbeddingURL, cfg.Memory.EmbeddingModel, cfg.Memory.Dims)
	mem := memory.New(backend, embedding, cfg.Memory.Dims)

	// Generator/Repairer backend.
	llm := llmclient.New(llmclient.Config{
		BaseURL:        cfg.Orchestrator.GeneratorURL,
		APIKey:         cfg.Orchestrator.GeneratorAPIKey,
		GeneratorModel: cfg.Orchestrator.GeneratorModel,
		RepairerModel:  cfg.Orchestrator.RepairerModel,
	})

	orch := orchestrator.New(orchestrator.Config{
		MaxAttempts:  cfg.Orchestrator.MaxAttempts,
		RetrieveTopK: cfg.Orchestrator.RetrieveTopK,
	}, llm, llm, sandbox, mem)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, err := newRunHistory(ctx, cfg.RunHistory)
	if err != nil {
		return fmt.Errorf("creating run history store: %w", err)
	}
	if history != nil {
		defer history.Close()
		slog.Info("run history enabled", "type", cfg.RunHistory.Type)
	}

	taskRunner := recordingTaskRunner(orch, history)

	adapter := transporthttp.NewAdapter(taskRunner, transporthttp.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		MaxBodySize: 10 << 20,
	},
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(slog.Default()),
	)

	mux := http.NewServeMux()
	mux.Handle("/", adapter.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if history != nil {
			if err := history.HealthCheck(r.Context()); err != nil {
				http.Error(w, "run history unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	var handler http.Handler = mux
	handler = observability.MetricsMiddleware(handler)
	if cfg.Auth.Type == "apikey" {
		var limiter auth.RateLimiter
		if rl := cfg.Auth.RateLimit; rl.Enabled() {
			limiter = auth.NewFixedWindowLimiter(rl.TierRPM, rl.DefaultRPM)
		}
		handler = auth.Middleware(authChain(cfg.Auth), limiter, auth.DefaultBypassEndpoints)(handler)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.Server.Port,
			"generator", cfg.Orchestrator.GeneratorURL,
			"qdrant", cfg.Memory.QdrantURL,
			"max_attempts", cfg.Orchestrator.MaxAttempts,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runnerConfig maps the config file's Runner section onto pkg/runner's
// Config, parsing image override keys into Language values.
func runnerConfig(rc config.RunnerConfig) runner.Config {
	out := runner.Defaults()
	out.MaxConcurrency = rc.MaxConcurrency
	out.MaxArtifactBytes = rc.MaxArtifactBytes
	out.DefaultNetwork = rc.DefaultNetwork
	out.MemoryLimit = rc.MemoryLimit
	out.CPULimit = rc.CPULimit
	out.PidsLimit = rc.PidsLimit
	out.TmpfsSize = rc.TmpfsSize
	out.PipCachePath = rc.PipCachePath

	for key, image := range rc.ImageOverrides {
		lang, ok := task.ParseLanguage(key)
		if !ok {
			slog.Warn("ignoring image override for unknown language", "language", key)
			continue
		}
		out.ImageOverrides[lang] = image
	}
	return out
}

// newRunHistory builds the optional run-history store. A nil store means
// persistence is disabled.
func newRunHistory(ctx context.Context, rc config.RunHistoryConfig) (runhistory.Store, error) {
	switch rc.Type {
	case "none":
		return nil, nil
	case "memory":
		return historymem.New(rc.MaxSize), nil
	case "postgres":
		return historypg.New(ctx, historypg.Config{
			DSN:            rc.Postgres.DSN,
			MaxConns:       rc.Postgres.MaxConns,
			MigrateOnStart: rc.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown run_history.type %q", rc.Type)
	}
}

// recordingTaskRunner adapts the Orchestrator to the Transport and, when
// a history store is configured, saves each completed run. History
// failures are logged and swallowed: persistence never fails a run.
func recordingTaskRunner(orch *orchestrator.Orchestrator, history runhistory.Store) transport.TaskRunner {
	return transport.TaskRunnerFunc(func(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
		payload, err := orch.Run(ctx, t)

		if history != nil {
			rec := &runhistory.RunRecord{
				ID:        newRunID(),
				TaskText:  t.Text,
				Result:    payload,
				CreatedAt: time.Now().UTC(),
			}
			if err != nil {
				rec.Err = err.Error()
			}
			if saveErr := history.Save(ctx, rec); saveErr != nil {
				slog.Warn("saving run record failed", "id", rec.ID, "error", saveErr)
			}
		}

		return payload, err
	})
}

// authChain builds the bearer-token gate from config. Only type=apikey
// reaches this; a request without bearer credentials abstains through
// the chain and is rejected.
func authChain(ac config.AuthConfig) *auth.Chain {
	entries := make([]apikey.Entry, 0, len(ac.APIKeys))
	for _, k := range ac.APIKeys {
		entries = append(entries, apikey.Entry{
			Key: k.Key,
			Identity: auth.Identity{
				Subject:     k.Subject,
				ServiceTier: k.ServiceTier,
			},
		})
	}
	return &auth.Chain{
		Authenticators: []auth.Authenticator{apikey.New(entries)},
	}
}

// newRunID generates a short random identifier for a run-history record.
func newRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("run_%d", time.Now().UnixNano())
	}
	return "run_" + hex.EncodeToString(b)
}
