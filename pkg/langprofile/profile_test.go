package langprofile

import (
	"testing"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

func TestLookup_AllLanguages(t *testing.T) {
	for _, lang := range task.Languages {
		p, ok := Lookup(lang)
		if !ok {
			t.Fatalf("no profile for %s", lang)
		}
		if p.Filename == "" || p.BaseImage == "" || p.Execute == "" {
			t.Errorf("%s: incomplete profile %+v", lang, p)
		}
	}
}

func TestLookup_PythonSupportsRequirements(t *testing.T) {
	p, _ := Lookup(task.Python)
	if !p.SupportsRequirements {
		t.Error("python should support requirements")
	}
	p, _ = Lookup(task.JavaScript)
	if p.SupportsRequirements {
		t.Error("javascript should not support requirements")
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup(task.Language("cobol")); ok {
		t.Error("unknown language should not resolve")
	}
}

func TestResolveImage(t *testing.T) {
	p, _ := Lookup(task.Python)
	if got := ResolveImage(p, ""); got != "python:3.10-slim" {
		t.Errorf("ResolveImage() = %q, want default image", got)
	}
	if got := ResolveImage(p, "myregistry/python:custom"); got != "myregistry/python:custom" {
		t.Errorf("ResolveImage() = %q, want override", got)
	}
}
