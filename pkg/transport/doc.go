// Package transport defines the handler interface and middleware chain for
// the kernel's synchronous task-execution transport layer.
//
// The transport layer bridges external clients and the kernel's Orchestrator.
// It accepts a task description, dispatches it through the TaskRunner
// interface for processing, and returns the completed result (or a
// structured error) as a single JSON response. Unlike streaming transports,
// there is no partial-progress event stream: a request either completes
// with a DonePayload or fails with an apierr.APIError.
//
// # Handler Interface
//
// TaskRunner defines the single contract between the transport layer and
// the Orchestrator:
//
//   - RunTask executes one task end-to-end (write, execute, repair) and
//     returns the final result or an error.
//
// # Middleware
//
// The middleware chain wraps TaskRunner with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), structured logging via log/slog, and a ConcurrencyGate
// for fast-reject admission control independent of the Runner's own
// container concurrency limit. Custom middleware can be added for
// application-specific concerns.
//
// # Zero Dependencies
//
// This package uses only Go standard library packages. HTTP serving (in
// the http subpackage) uses net/http with Go 1.22+ ServeMux routing
// patterns. Structured logging uses log/slog.
package transport
