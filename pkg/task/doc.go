// Package task defines the core data model shared by the Orchestrator,
// Sandbox Runner, and Transport: the immutable Task a caller submits, the
// mutable AttemptState threaded through a run's state transitions, and the
// RunResult a single sandbox execution produces.
//
// Types here carry no behavior beyond small invariant-preserving
// constructors and validators; the state machine itself lives in
// pkg/orchestrator.
package task
