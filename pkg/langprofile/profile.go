// Package langprofile holds the fixed per-language table the Sandbox
// Runner uses to decide what file to write, what image to run, and what
// shell commands to execute.
package langprofile

import "github.com/neuroforge-dev/kernel/pkg/task"

// Profile describes how one Language is written to a workspace and run.
type Profile struct {
	// Filename is written into the workspace root.
	Filename string

	// BaseImage is the default container image; overridable per language
	// by runner.Config.ImageOverrides.
	BaseImage string

	// Preamble is an optional shell snippet run before Execute, typically
	// a dependency install step.
	Preamble string

	// Execute launches the program.
	Execute string

	// SupportsRequirements reports whether this language accepts a
	// requirements list at all (only Python does).
	SupportsRequirements bool
}

// profiles is the canonical per-language table. Read-only after
// init; safe for concurrent use without synchronization.
var profiles = map[task.Language]Profile{
	task.Python: {
		Filename:             "main.py",
		BaseImage:            "python:3.10-slim",
		Preamble:             "if [ -s requirements.txt ]; then pip install --no-cache-dir -r requirements.txt; fi",
		Execute:              "python /workspace/main.py",
		SupportsRequirements: true,
	},
	task.JavaScript: {
		Filename:  "main.js",
		BaseImage: "node:20-bullseye",
		Execute:   "node /workspace/main.js",
	},
	task.C: {
		Filename:  "main.c",
		BaseImage: "gcc:13",
		Execute:   "gcc main.c -std=c11 -O2 -o main && ./main",
	},
	task.Cpp: {
		Filename:  "main.cpp",
		BaseImage: "gcc:13",
		Execute:   "g++ main.cpp -std=c++17 -O2 -o main && ./main",
	},
	task.Java: {
		Filename:  "Main.java",
		BaseImage: "openjdk:21-slim",
		Execute:   "javac Main.java && java Main",
	},
}

// Lookup returns the Profile for lang and whether it was found.
func Lookup(lang task.Language) (Profile, bool) {
	p, ok := profiles[lang]
	return p, ok
}

// ResolveImage returns the profile's base image, or override if non-empty.
// Used by runner.Config.ImageOverrides (env var SANDBOX_IMAGE_<LANG>).
func ResolveImage(p Profile, override string) string {
	if override != "" {
		return override
	}
	return p.BaseImage
}
