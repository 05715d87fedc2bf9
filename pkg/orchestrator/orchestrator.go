package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/neuroforge-dev/kernel/pkg/debuglog"
	"github.com/neuroforge-dev/kernel/pkg/errsig"
	"github.com/neuroforge-dev/kernel/pkg/inferencer"
	"github.com/neuroforge-dev/kernel/pkg/memory"
	"github.com/neuroforge-dev/kernel/pkg/observability"
	"github.com/neuroforge-dev/kernel/pkg/runner"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// sandboxRunner is the subset of *runner.Runner the Orchestrator depends
// on; narrowed to an interface so tests can substitute a fake sandbox
// without spinning up Docker.
type sandboxRunner interface {
	Run(ctx context.Context, req runner.Request) (*task.RunResult, error)
}

// memoryAdapter is the subset of *memory.Client the Orchestrator depends
// on; narrowed to an interface for the same reason as sandboxRunner.
type memoryAdapter interface {
	AddTool(ctx context.Context, name string, language task.Language, code string, metadata memory.Metadata) (string, error)
	RetrieveTools(ctx context.Context, query string, topK int) ([]memory.Record, error)
	AddError(ctx context.Context, errorText, stderr, codeContext string) (string, error)
	RetrieveSimilarErrors(ctx context.Context, query string, topK int) ([]memory.Record, error)
	AddFix(ctx context.Context, signature string, language task.Language, fixedCode string, metadata memory.Metadata) (string, error)
	RetrieveFixes(ctx context.Context, signatureOrText string, topK int) ([]memory.Record, error)
	RetrieveDocs(ctx context.Context, query string, topK int) ([]memory.Record, error)
}

// Orchestrator drives the WRITE/EXECUTE/REPAIR/DONE state machine for one
// task at a time. A single Orchestrator value is safe for concurrent use
// by multiple goroutines, each running a distinct task: the state machine
// itself has no internal concurrency, and the shared Runner and Memory
// Adapter are both already safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	generator Generator
	repairer  Repairer
	runner    sandboxRunner
	memory    memoryAdapter
}

// New creates an Orchestrator. generator, repairer, run, and mem must all
// be non-nil. run is typically a *runner.Runner and mem a *memory.Client;
// both are accepted as interfaces so callers (and tests) can substitute
// alternative implementations.
func New(cfg Config, generator Generator, repairer Repairer, run sandboxRunner, mem memoryAdapter) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		generator: generator,
		repairer:  repairer,
		runner:    run,
		memory:    mem,
	}
}

// Run executes one task end to end and returns its DONE payload. The
// only errors Run itself returns are fatal ones the state machine cannot
// recover from (a Generator or Repairer failure, or an error returned by
// the Runner, such as a rejected request); every other
// terminal outcome, including a failed sandbox run or an exhausted
// repair budget, is reported through the returned DonePayload.
func (o *Orchestrator) Run(ctx context.Context, t *task.Task) (*task.DonePayload, error) {
	state := task.NewAttemptState(t)

	primingContext := o.buildPrimingContext(ctx, state.TaskText)
	code, language, err := o.generate(ctx, state.TaskText, state.Language, primingContext)
	if err != nil {
		observability.RunsTotal.WithLabelValues("generation_failed").Inc()
		return nil, fmt.Errorf("generating code: %w", err)
	}
	state.Code = sanitizeCode(code)
	state.Language = language
	state.Attempts++

	for {
		done, err := o.execute(ctx, state)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}

		// A plain failure goes to REPAIR unless the attempt budget is
		// already spent; REPAIR itself (not this loop) owns the attempts
		// increment, and only afterward is it decided whether to go back
		// to EXECUTE or give up.
		if state.Attempts >= o.cfg.maxAttempts() {
			break
		}
		if err := o.repair(ctx, state); err != nil {
			return nil, err
		}
		if state.Attempts >= o.cfg.maxAttempts() {
			break
		}
	}

	outcome := "success"
	if state.LastResult == nil || !state.LastResult.Succeeded() {
		outcome = "failed"
	}
	if len(state.InputsRequired) > 0 {
		outcome = "inputs_required"
	}
	observability.RunsTotal.WithLabelValues(outcome).Inc()
	observability.AttemptsPerRun.Observe(float64(state.Attempts))

	return donePayload(state), nil
}

func (o *Orchestrator) generate(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (string, task.Language, error) {
	timer := time.Now()
	code, language, err := o.generator.Generate(ctx, taskText, priorLanguage, primingContext)
	observability.GeneratorLatency.Observe(time.Since(timer).Seconds())
	return code, language, err
}

// execute runs the WRITE-produced (or REPAIR-corrected) code once,
// applying the auto-install retry and reporting whether the run reached
// a terminal (DONE-bound) outcome.
func (o *Orchestrator) execute(ctx context.Context, state *task.AttemptState) (bool, error) {
	var inferredPkgs []string
	if state.Language == task.Python {
		inferredPkgs = inferencer.InferPackages(state.Code)
	}
	state.Timeout = adaptiveTimeout(state.Timeout, inferredPkgs)

	result, err := o.runOnce(ctx, state, inferredPkgs, state.Timeout)
	if err != nil {
		return false, err
	}

	if result.Succeeded() || len(result.InputsRequired) > 0 {
		return o.finalize(ctx, state, result)
	}

	if state.Language == task.Python {
		missing := inferencer.MissingModules(result.Stderr)
		if len(missing) > 0 {
			seen, err := o.memory.RetrieveSimilarErrors(ctx, result.Stderr, 1)
			if err != nil {
				debuglog.Log("orchestrator", "retrieve similar errors failed", "error", err)
			}
			if len(seen) == 0 {
				retryTimeout := clampTimeout(state.Timeout, 60, 300)
				if retryTimeout < 60 {
					retryTimeout = 60
				}
				retryTimeout = clampTimeout(retryTimeout+60, 60, 300)
				state.Timeout = retryTimeout

				retryResult, err := o.runOnce(ctx, state, mergeRequirements(inferredPkgs, missing), retryTimeout)
				if err != nil {
					return false, err
				}
				return o.finalize(ctx, state, retryResult)
			}
		}
	}

	return o.finalize(ctx, state, result)
}

func (o *Orchestrator) runOnce(ctx context.Context, state *task.AttemptState, requirements []string, timeout int) (*task.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout+60)*time.Second)
	defer cancel()

	return o.runner.Run(runCtx, runner.Request{
		Language:     state.Language,
		Code:         state.Code,
		Timeout:      timeout,
		Requirements: requirements,
		Network:      state.Network,
		InputFiles:   state.InputFiles,
	})
}

// finalize records a run's outcome in state and the Memory Adapter, and
// reports whether the state machine should transition to DONE.
func (o *Orchestrator) finalize(ctx context.Context, state *task.AttemptState, result *task.RunResult) (bool, error) {
	if !result.Succeeded() && len(result.InputsRequired) == 0 {
		result.InputsRequired = missingInputs(result.Stderr, state.InputFiles)
	}

	if result.Succeeded() {
		state.RecordSuccess(result)
		if _, err := o.memory.AddTool(ctx, "", state.Language, state.Code, memory.Metadata{
			"source":        "auto_promote",
			"success_count": 1,
		}); err != nil {
			debuglog.Log("orchestrator", "add_tool failed", "error", err)
		}
		return true, nil
	}

	if len(result.InputsRequired) > 0 {
		state.RecordFailure(result, "")
		return true, nil
	}

	signature := errsig.Compute(result.Stderr)
	state.RecordFailure(result, signature)
	if _, err := o.memory.AddError(ctx, result.Stderr, result.Stderr, state.Code); err != nil {
		debuglog.Log("orchestrator", "add_error failed", "error", err)
	}
	return false, nil
}

// repair runs one REPAIR iteration: query fixes for advisory context,
// always invoke the Repairer, persist the new fix, and grow the timeout.
func (o *Orchestrator) repair(ctx context.Context, state *task.AttemptState) error {
	if state.ErrorSignature == "" {
		state.ErrorSignature = errsig.Compute(state.ErrorText)
	}

	// Advisory lookups only: presence of hits increases confidence but
	// never skips the Repairer call.
	if _, err := o.memory.RetrieveFixes(ctx, state.ErrorSignature, 2); err != nil {
		debuglog.Log("orchestrator", "retrieve fixes by signature failed", "error", err)
	}
	if _, err := o.memory.RetrieveFixes(ctx, state.ErrorText, 2); err != nil {
		debuglog.Log("orchestrator", "retrieve fixes by error text failed", "error", err)
	}

	primingContext := o.buildPrimingContext(ctx, state.TaskText)

	timer := time.Now()
	repaired, err := o.repairer.Repair(ctx, state.Code, state.Language, state.ErrorText, primingContext)
	observability.RepairerLatency.Observe(time.Since(timer).Seconds())
	if err != nil {
		return fmt.Errorf("repairing code: %w", err)
	}
	state.Code = sanitizeCode(repaired)

	if _, err := o.memory.AddFix(ctx, state.ErrorSignature, state.Language, state.Code, nil); err != nil {
		debuglog.Log("orchestrator", "add_fix failed", "error", err)
	}

	state.Timeout = clampTimeout(state.Timeout+30, 60, 300)
	state.Attempts++
	return nil
}

// missingInputs extracts filenames the failed run complained about,
// skipping any the caller already supplied: those failures are program
// bugs to repair, not inputs the caller can provide.
func missingInputs(stderr string, provided map[string][]byte) []string {
	var out []string
	for _, name := range inferencer.MissingFiles(stderr) {
		if _, ok := provided[name]; ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

func donePayload(state *task.AttemptState) *task.DonePayload {
	p := &task.DonePayload{
		Language:       state.Language,
		Attempts:       state.Attempts,
		InputsRequired: state.InputsRequired,
	}
	if state.LastResult != nil {
		p.Stdout = state.LastResult.Stdout
		p.Stderr = state.LastResult.Stderr
		p.ExitCode = state.LastResult.ExitCode
	}
	return p
}
