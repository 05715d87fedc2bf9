// Package apierr defines the structured error taxonomy used at the
// Transport boundary. Errors constructed here map 1:1 onto HTTP status codes in pkg/transport/http; nothing below the
// Transport layer is expected to import this package, since internal
// control flow uses plain Go errors and the Orchestrator's own result
// fields instead of API errors.
package apierr
