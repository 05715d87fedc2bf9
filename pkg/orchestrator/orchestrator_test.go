package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/neuroforge-dev/kernel/pkg/memory"
	"github.com/neuroforge-dev/kernel/pkg/runner"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// fakeRunner is a scripted sandboxRunner: each call to Run pops the next
// queued result, repeating the last one once the queue is exhausted.
type fakeRunner struct {
	results []*task.RunResult
	calls   []runner.Request
}

func (f *fakeRunner) Run(ctx context.Context, req runner.Request) (*task.RunResult, error) {
	f.calls = append(f.calls, req)
	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx], nil
}

// fakeMemory is an in-memory memoryAdapter double recording every write.
type fakeMemory struct {
	tools  []string
	errors []string
	fixes  []string

	similarErrors []memory.Record
	fixResults    []memory.Record
}

func (f *fakeMemory) AddTool(ctx context.Context, name string, language task.Language, code string, metadata memory.Metadata) (string, error) {
	f.tools = append(f.tools, code)
	return "tool_x", nil
}

func (f *fakeMemory) RetrieveTools(ctx context.Context, query string, topK int) ([]memory.Record, error) {
	return nil, nil
}

func (f *fakeMemory) AddError(ctx context.Context, errorText, stderr, codeContext string) (string, error) {
	f.errors = append(f.errors, stderr)
	return "err_x", nil
}

func (f *fakeMemory) RetrieveSimilarErrors(ctx context.Context, query string, topK int) ([]memory.Record, error) {
	return f.similarErrors, nil
}

func (f *fakeMemory) AddFix(ctx context.Context, signature string, language task.Language, fixedCode string, metadata memory.Metadata) (string, error) {
	f.fixes = append(f.fixes, fixedCode)
	return "fix_x", nil
}

func (f *fakeMemory) RetrieveFixes(ctx context.Context, signatureOrText string, topK int) ([]memory.Record, error) {
	return f.fixResults, nil
}

func (f *fakeMemory) RetrieveDocs(ctx context.Context, query string, topK int) ([]memory.Record, error) {
	return nil, nil
}

func pythonGenerator(code string) Generator {
	return GeneratorFunc(func(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (string, task.Language, error) {
		return code, task.Python, nil
	})
}

func TestRun_SucceedsOnFirstAttempt(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{{ExitCode: 0, Stdout: "hello"}}}
	mem := &fakeMemory{}
	o := New(Config{}, pythonGenerator("print('hello')"), nil, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "print hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if result.ExitCode != 0 || result.Stdout != "hello" {
		t.Errorf("unexpected payload: %+v", result)
	}
	if len(mem.tools) != 1 {
		t.Errorf("expected one tool promoted, got %d", len(mem.tools))
	}
}

func TestRun_RepairsAndSucceedsOnSecondAttempt(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{
		{ExitCode: 1, Stderr: "NameError: name 'x' is not defined"},
		{ExitCode: 0, Stdout: "ok"},
	}}
	mem := &fakeMemory{}
	repairer := RepairerFunc(func(ctx context.Context, code string, language task.Language, errorText, primingContext string) (string, error) {
		return "print('ok')", nil
	})
	o := New(Config{}, pythonGenerator("print(x)"), repairer, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "print a literal"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if len(mem.errors) != 1 {
		t.Errorf("expected one error recorded, got %d", len(mem.errors))
	}
	if len(mem.fixes) != 1 {
		t.Errorf("expected one fix recorded, got %d", len(mem.fixes))
	}
}

func TestRun_ExhaustsAttemptsAndReportsFailure(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{{ExitCode: 1, Stderr: "boom"}}}
	mem := &fakeMemory{}
	repairer := RepairerFunc(func(ctx context.Context, code string, language task.Language, errorText, primingContext string) (string, error) {
		return code, nil
	})
	o := New(Config{MaxAttempts: 2}, pythonGenerator("raise Exception()"), repairer, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "always fails"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (MaxAttempts)", result.Attempts)
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestRun_InputsRequiredShortCircuitsRepair(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{
		{ExitCode: 1, Stderr: "missing file", InputsRequired: []string{"report.pdf"}},
	}}
	mem := &fakeMemory{}
	o := New(Config{}, pythonGenerator("open('report.pdf')"), nil, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "read a report"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (no retry on inputs_required)", result.Attempts)
	}
	if len(result.InputsRequired) != 1 || result.InputsRequired[0] != "report.pdf" {
		t.Errorf("InputsRequired = %v", result.InputsRequired)
	}
}

func TestRun_ExtractsMissingInputsFromStderr(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{
		{ExitCode: 1, Stderr: "FileNotFoundError: [Errno 2] No such file or directory: 'report.pdf'"},
	}}
	mem := &fakeMemory{}
	o := New(Config{}, pythonGenerator("open('report.pdf')"), nil, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "read a report"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (no repair once inputs are required)", result.Attempts)
	}
	if len(result.InputsRequired) != 1 || result.InputsRequired[0] != "report.pdf" {
		t.Errorf("InputsRequired = %v, want [report.pdf]", result.InputsRequired)
	}
}

func TestRun_ProvidedFilesAreNotReportedAsMissingInputs(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{
		{ExitCode: 1, Stderr: "No such file or directory: 'report.pdf'"},
	}}
	mem := &fakeMemory{}
	repairer := RepairerFunc(func(ctx context.Context, code string, language task.Language, errorText, primingContext string) (string, error) {
		return code, nil
	})
	o := New(Config{MaxAttempts: 2}, pythonGenerator("open('report.pdf')"), repairer, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{
		Text:       "read a report",
		InputFiles: map[string][]byte{"report.pdf": []byte("%PDF-")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The caller already supplied report.pdf, so the failure is a program
	// bug and goes through REPAIR instead of inputs_required.
	if len(result.InputsRequired) != 0 {
		t.Errorf("InputsRequired = %v, want none", result.InputsRequired)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (repair attempted)", result.Attempts)
	}
}

func TestRun_AutoInstallsMissingModuleAndRetries(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{
		{ExitCode: 1, Stderr: "ModuleNotFoundError: No module named 'pandas'"},
		{ExitCode: 0, Stdout: "done"},
	}}
	mem := &fakeMemory{}
	o := New(Config{}, pythonGenerator("import pandas"), nil, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "load a csv with pandas"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (auto-install retry does not consume an attempt)", result.Attempts)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0 after auto-install retry", result.ExitCode)
	}
	if len(rn.calls) != 2 {
		t.Fatalf("expected 2 runner calls (original + retry), got %d", len(rn.calls))
	}
	found := false
	for _, r := range rn.calls[1].Requirements {
		if r == "pandas" {
			found = true
		}
	}
	if !found {
		t.Errorf("retry requirements = %v, want to include pandas", rn.calls[1].Requirements)
	}
}

func TestRun_SkipsAutoInstallRetryWhenSimilarErrorSeen(t *testing.T) {
	rn := &fakeRunner{results: []*task.RunResult{
		{ExitCode: 1, Stderr: "ModuleNotFoundError: No module named 'pandas'"},
	}}
	mem := &fakeMemory{similarErrors: []memory.Record{{ID: "err_prior"}}}
	o := New(Config{MaxAttempts: 1}, pythonGenerator("import pandas"), nil, rn, mem)

	result, err := o.Run(context.Background(), &task.Task{Text: "load a csv with pandas"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rn.calls) != 1 {
		t.Errorf("expected no retry once a similar error is already on file, got %d calls", len(rn.calls))
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestRun_GeneratorFailureIsFatal(t *testing.T) {
	gen := GeneratorFunc(func(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (string, task.Language, error) {
		return "", "", errors.New("backend unreachable")
	})
	o := New(Config{}, gen, nil, &fakeRunner{}, &fakeMemory{})

	if _, err := o.Run(context.Background(), &task.Task{Text: "anything"}); err == nil {
		t.Error("expected a fatal error when generation fails")
	}
}

func TestSanitizeCode_StripsFencesAndLanguageLabel(t *testing.T) {
	raw := "```python\nprint('hi')\n```"
	if got := sanitizeCode(raw); got != "print('hi')" {
		t.Errorf("sanitizeCode() = %q", got)
	}
}

func TestSanitizeCode_StripsLeadingLanguageTokenWithoutFence(t *testing.T) {
	raw := "python\nprint('hi')"
	if got := sanitizeCode(raw); got != "print('hi')" {
		t.Errorf("sanitizeCode() = %q", got)
	}
}

func TestSanitizeCode_StripsBOM(t *testing.T) {
	raw := "\ufeffprint('hi')"
	if got := sanitizeCode(raw); got != "print('hi')" {
		t.Errorf("sanitizeCode() = %q", got)
	}
}

func TestSanitizeCode_StripsStrayFenceMarkers(t *testing.T) {
	raw := "```\nprint('hi')\n```\n"
	if got := sanitizeCode(raw); got != "print('hi')" {
		t.Errorf("sanitizeCode() = %q", got)
	}
}

func TestAdaptiveTimeout_FloorsAtDefault(t *testing.T) {
	if got := adaptiveTimeout(30, nil); got != 30 {
		t.Errorf("adaptiveTimeout() = %d, want 30", got)
	}
}

func TestAdaptiveTimeout_BumpsForInferredAndHeavyPackages(t *testing.T) {
	if got := adaptiveTimeout(30, []string{"pandas"}); got != 70 {
		t.Errorf("adaptiveTimeout() = %d, want 70 (30+20+20)", got)
	}
}

func TestAdaptiveTimeout_BumpsForNonHeavyInferredOnly(t *testing.T) {
	if got := adaptiveTimeout(30, []string{"requests"}); got != 50 {
		t.Errorf("adaptiveTimeout() = %d, want 50 (30+20)", got)
	}
}

func TestAdaptiveTimeout_NeverShrinksExistingTimeout(t *testing.T) {
	if got := adaptiveTimeout(200, nil); got != 200 {
		t.Errorf("adaptiveTimeout() = %d, want 200 (existing timeout kept)", got)
	}
}

func TestMergeRequirements_DedupesPreservingOrder(t *testing.T) {
	got := mergeRequirements([]string{"numpy", "pandas"}, []string{"pandas", "requests"})
	want := []string{"numpy", "pandas", "requests"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}
