package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/neuroforge-dev/kernel/pkg/debuglog"
	"github.com/neuroforge-dev/kernel/pkg/langprofile"
	"github.com/neuroforge-dev/kernel/pkg/observability"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// Request is the Sandbox Runner's contract.
type Request struct {
	Language          task.Language
	Code              string
	Timeout           int // seconds, must be in [1, 300]
	Requirements      []string
	ExtraRequirements []string
	Network           string
	InputFiles        map[string][]byte
}

// Runner executes Requests inside disposable Docker containers, bounded
// by a shared MAX_CONCURRENCY semaphore.
type Runner struct {
	cfg       Config
	permit    semaphore
	newEngine func() (dockerEngine, error)
}

// New creates a Runner from cfg. Validation of cfg is the caller's
// responsibility; Config zero values are treated as "unset" by the
// individual container-build helpers.
func New(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		permit: newSemaphore(cfg.MaxConcurrency),
		newEngine: func() (dockerEngine, error) {
			return newDockerClient()
		},
	}
}

// Run executes req and returns its RunResult. Run never returns a Go
// error for sandbox-level failures (compile errors, timeouts, missing
// runtime): those are encoded in the returned RunResult. A non-nil
// error is returned for precondition violations (bad language,
// out-of-range timeout, empty requirement, unsafe input file name), for
// ctx ending while waiting for a concurrency slot, and for host-side
// workspace failures before a container is started.
func (r *Runner) Run(ctx context.Context, req Request) (*task.RunResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if err := r.permit.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.permit.release()

	observability.RunnerRunsTotal.WithLabelValues(string(req.Language)).Inc()
	timer := observability.NewRunnerDurationTimer(string(req.Language))
	defer timer.ObserveDuration()

	profile, _ := langprofile.Lookup(req.Language)

	ws, err := newWorkspace(r.cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	defer ws.remove()

	if err := ws.writeCode(profile.Filename, req.Code); err != nil {
		return nil, fmt.Errorf("writing source: %w", err)
	}
	if err := ws.writeInputFiles(req.InputFiles); err != nil {
		return nil, err
	}
	if len(req.InputFiles) > 0 {
		debuglog.Log("runner", "wrote input files", "files", sortedKeys(req.InputFiles))
	}
	if profile.SupportsRequirements {
		if err := ws.writeRequirements(req.Requirements, req.ExtraRequirements); err != nil {
			return nil, fmt.Errorf("writing requirements: %w", err)
		}
	}

	name, err := newContainerName()
	if err != nil {
		return nil, err
	}

	debuglog.Log("runner", "run starting", "language", req.Language, "container", name, "timeout", req.Timeout)

	engine, err := r.newEngine()
	if err != nil {
		return &task.RunResult{ExitCode: 1, Stderr: err.Error()}, nil
	}
	defer engine.Close()

	result, err := r.runInContainer(ctx, engine, ws, profile, req, name)
	if err != nil {
		observability.RunnerFailuresTotal.WithLabelValues(string(req.Language)).Inc()
		return &task.RunResult{ExitCode: 1, Stderr: fmt.Sprintf("Runner error: %v", err)}, nil
	}
	return result, nil
}

func (r *Runner) runInContainer(ctx context.Context, engine dockerEngine, ws *workspace, profile langprofile.Profile, req Request, name string) (*task.RunResult, error) {
	image := langprofile.ResolveImage(profile, r.cfg.ImageOverrides[req.Language])
	network := req.Network
	if network == "" {
		network = r.cfg.DefaultNetwork
	}

	script := assembleScript(profile)
	containerCfg := &container.Config{
		Image: image,
		Cmd:   []string{"bash", "-lc", script},
	}

	var binds []string
	if profile.SupportsRequirements && r.cfg.PipCachePath != "" {
		binds = append(binds, r.cfg.PipCachePath+":/root/.cache/pip")
	}
	hostCfg, err := buildHostConfig(r.cfg, network, binds)
	if err != nil {
		return nil, err
	}

	containerID, err := engine.ContainerCreate(ctx, containerCfg, hostCfg, name)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	defer engine.ContainerRemove(context.Background(), containerID)

	tarStream, err := tarWorkspace(ws.dir)
	if err != nil {
		return nil, fmt.Errorf("archiving workspace: %w", err)
	}
	defer tarStream.Close()
	if err := engine.CopyToContainer(ctx, containerID, "/workspace", tarStream); err != nil {
		return nil, fmt.Errorf("copy in: %w", err)
	}

	if err := engine.ContainerStart(ctx, containerID); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, toSeconds(req.Timeout))
	defer cancel()

	exitCode, waitErr := engine.ContainerWait(runCtx, containerID)
	if waitErr != nil {
		if isTimeout(waitErr) {
			observability.RunnerTimeoutsTotal.WithLabelValues(string(req.Language)).Inc()
			return &task.RunResult{ExitCode: 124, Stdout: "", Stderr: "Execution timed out."}, nil
		}
		return nil, fmt.Errorf("wait: %w", waitErr)
	}

	stdout, stderr, err := engine.ContainerLogs(context.Background(), containerID)
	if err != nil {
		return nil, fmt.Errorf("logs: %w", err)
	}

	result := &task.RunResult{ExitCode: int(exitCode), Stdout: stdout, Stderr: stderr}
	r.attachArtifact(containerID, engine, ws, result)
	return result, nil
}

// attachArtifact copies /workspace back out, zips it, and attaches it (or
// a size-limit note) to result. Failures here never alter ExitCode — the
// run's outcome is already decided.
func (r *Runner) attachArtifact(containerID string, engine dockerEngine, ws *workspace, result *task.RunResult) {
	rc, err := engine.CopyFromContainer(context.Background(), containerID, "/workspace")
	if err != nil {
		result.ArtifactsNote = fmt.Sprintf("artifact copy failed: %v", err)
		return
	}
	defer rc.Close()

	out, err := os.MkdirTemp("", "nf-out-")
	if err != nil {
		result.ArtifactsNote = fmt.Sprintf("artifact staging failed: %v", err)
		return
	}
	defer os.RemoveAll(out)

	if err := untarWorkspace(rc, out); err != nil {
		result.ArtifactsNote = fmt.Sprintf("artifact extraction failed: %v", err)
		return
	}

	zipBytes, err := zipWorkspace(out)
	if err != nil {
		result.ArtifactsNote = fmt.Sprintf("artifact zipping failed: %v", err)
		return
	}

	if int64(len(zipBytes)) > r.cfg.MaxArtifactBytes {
		result.ArtifactsNote = fmt.Sprintf("artifact omitted: %d bytes exceeds limit of %d", len(zipBytes), r.cfg.MaxArtifactBytes)
		return
	}
	result.ArtifactsZip = zipBytes
}

// assembleScript builds the in-container command: always
// "set -euo pipefail && [preamble &&] execute".
func assembleScript(p langprofile.Profile) string {
	var b strings.Builder
	b.WriteString("set -euo pipefail")
	if p.Preamble != "" {
		b.WriteString(" && ")
		b.WriteString(p.Preamble)
	}
	b.WriteString(" && ")
	b.WriteString(p.Execute)
	return b.String()
}

func validateRequest(req Request) error {
	if !req.Language.Valid() {
		return fmt.Errorf("unknown language %q", req.Language)
	}
	if req.Timeout < 1 || req.Timeout > 300 {
		return fmt.Errorf("timeout %d out of range [1, 300]", req.Timeout)
	}
	for _, r := range req.Requirements {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("requirements entries must be non-empty")
		}
	}
	return nil
}

func toSeconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
