// Package llmclient implements the Orchestrator's Generator and Repairer
// interfaces against an OpenAI-compatible Chat Completions backend.
//
// It is the only place in the kernel that calls out to an LLM. The
// client is deliberately minimal: one non-streaming, non-tool-calling
// chat completion per WRITE or REPAIR step.
package llmclient
