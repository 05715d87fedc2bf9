package orchestrator

import (
	"context"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// Generator produces source code for a task description. priorLanguage
// is set when a previous attempt already settled on a language (empty
// otherwise); context is the priming text WRITE assembled from retrieved
// tools/docs snippets (empty when nothing was retrieved). Implementations
// are the only place in this module that may call out to an LLM backend.
type Generator interface {
	Generate(ctx context.Context, taskText string, priorLanguage task.Language, primingContext string) (code string, language task.Language, err error)
}

// Repairer produces a corrected version of failing source code. context
// carries the same freshly-retrieved tools/docs priming WRITE uses.
type Repairer interface {
	Repair(ctx context.Context, code string, language task.Language, errorText string, primingContext string) (string, error)
}
