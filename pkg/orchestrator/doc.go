// Package orchestrator drives one task from a natural-language
// description through code generation, sandboxed execution, and repair
// to a terminal outcome.
//
// The state machine is WRITE -> EXECUTE -> REPAIR -> DONE, bounded by
// Config.MaxAttempts. Code generation and repair are delegated to the
// pluggable Generator and Repairer interfaces; this package never talks
// to an LLM backend directly.
package orchestrator
