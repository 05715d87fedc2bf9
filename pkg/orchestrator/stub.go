package orchestrator

import (
	"context"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// GeneratorFunc adapts a plain function to the Generator interface, the
// same way http.HandlerFunc adapts a function to http.Handler. Intended
// for tests and for deterministic local backends; a real LLM-backed
// Generator belongs in its own package (see pkg/llmclient).
type GeneratorFunc func(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (code string, language task.Language, err error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (string, task.Language, error) {
	return f(ctx, taskText, priorLanguage, primingContext)
}

// RepairerFunc adapts a plain function to the Repairer interface.
type RepairerFunc func(ctx context.Context, code string, language task.Language, errorText string, primingContext string) (string, error)

// Repair implements Repairer.
func (f RepairerFunc) Repair(ctx context.Context, code string, language task.Language, errorText string, primingContext string) (string, error) {
	return f(ctx, code, language, errorText, primingContext)
}
