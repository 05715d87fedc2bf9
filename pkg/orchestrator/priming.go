package orchestrator

import (
	"context"
	"strings"
)

// buildPrimingContext retrieves the top tools and docs matches for
// taskText and concatenates them into a short text block the
// Generator/Repairer is primed with.
//
// A tool's code and a doc's body are never persisted into vector-store
// metadata (tools keep name, language, created_at and any caller
// metadata; docs keep title and created_at), so the priming context is
// built from those stored fields rather than full code bodies.
func (o *Orchestrator) buildPrimingContext(ctx context.Context, taskText string) string {
	var lines []string

	if tools, err := o.memory.RetrieveTools(ctx, taskText, o.cfg.retrieveTopK()); err == nil {
		for _, r := range tools {
			if name, ok := r.Metadata["name"].(string); ok && name != "" {
				lang, _ := r.Metadata["language"].(string)
				lines = append(lines, "prior tool: "+name+" ("+lang+")")
			}
		}
	}

	if docs, err := o.memory.RetrieveDocs(ctx, taskText, o.cfg.retrieveTopK()); err == nil {
		for _, r := range docs {
			if title, ok := r.Metadata["title"].(string); ok && title != "" {
				lines = append(lines, "doc: "+title)
			}
		}
	}

	return strings.Join(lines, "\n")
}
