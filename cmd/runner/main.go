// Command runner exposes the Sandbox Runner as a standalone HTTP
// service, for deployments that split code execution away from the
// orchestrating kernel process.
//
// Configuration:
//
//	SANDBOX_PORT               - Listen port (default: 8081)
//	SANDBOX_MAX_CONCURRENT     - Max simultaneous container runs (default: 4)
//	SANDBOX_MAX_ARTIFACT_BYTES - Inline artifact cap (default: 25 MiB)
//	SANDBOX_DOCKER_NETWORK     - Default container network (default: none)
//	SANDBOX_MEMORY_LIMIT, SANDBOX_CPU_LIMIT, SANDBOX_PIDS_LIMIT,
//	SANDBOX_TMPFS_SIZE, SANDBOX_PIP_CACHE_PATH, SANDBOX_IMAGE_<LANG>
//	                           - Container constraints, see pkg/runner.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroforge-dev/kernel/pkg/observability"
	"github.com/neuroforge-dev/kernel/pkg/runner"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

func main() {
	if err := run(); err != nil {
		slog.Error("runner server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := os.Getenv("SANDBOX_PORT")
	if port == "" {
		port = "8081"
	}

	cfg := runner.LoadConfigFromEnv()
	srv := &runnerServer{runner: runner.New(cfg)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /run", srv.handleRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      observability.MetricsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 420 * time.Second, // covers the 300s timeout ceiling plus copy-out
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("runner server starting",
			"port", port,
			"max_concurrent", cfg.MaxConcurrency,
			"network", cfg.DefaultNetwork,
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type runnerServer struct {
	runner *runner.Runner
}

// runRequest is the wire form of one sandbox execution.
type runRequest struct {
	Language          string            `json:"language"`
	Code              string            `json:"code"`
	Timeout           int               `json:"timeout"`
	Requirements      []string          `json:"requirements,omitempty"`
	ExtraRequirements []string          `json:"extra_requirements,omitempty"`
	Network           string            `json:"network,omitempty"`
	FilesB64          map[string]string `json:"files_b64,omitempty"`
}

// runResponse mirrors task.RunResult with inline-base64 artifacts.
type runResponse struct {
	ReturnCode     int      `json:"returncode"`
	Stdout         string   `json:"stdout"`
	Stderr         string   `json:"stderr"`
	InputsRequired []string `json:"inputs_required,omitempty"`
	ArtifactsZip   string   `json:"artifacts_zip_b64,omitempty"`
	ArtifactsNote  string   `json:"artifacts_note,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *runnerServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	lang, ok := task.ParseLanguage(req.Language)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown language %q", req.Language))
		return
	}

	inputFiles := make(map[string][]byte, len(req.FilesB64))
	for name, b64 := range req.FilesB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: invalid base64", name))
			return
		}
		inputFiles[name] = raw
	}

	result, err := s.runner.Run(r.Context(), runner.Request{
		Language:          lang,
		Code:              req.Code,
		Timeout:           req.Timeout,
		Requirements:      req.Requirements,
		ExtraRequirements: req.ExtraRequirements,
		Network:           req.Network,
		InputFiles:        inputFiles,
	})
	if err != nil {
		// Run returns an error for precondition violations, cancellation
		// and host-side workspace failures; sandbox failures are encoded
		// in the RunResult.
		status := http.StatusBadRequest
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}

	resp := runResponse{
		ReturnCode:     result.ExitCode,
		Stdout:         result.Stdout,
		Stderr:         result.Stderr,
		InputsRequired: result.InputsRequired,
		ArtifactsNote:  result.ArtifactsNote,
	}
	if len(result.ArtifactsZip) > 0 {
		resp.ArtifactsZip = base64.StdEncoding.EncodeToString(result.ArtifactsZip)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}
