// Package runner implements the Sandbox Runner: it executes a single program inside a disposable Docker container with
// resource caps, an ephemeral workspace, optional dependency installs, and
// artifact capture.
//
// Container lifecycle is driven through github.com/docker/docker/client
// rather than shelling out to the docker CLI. A bounded channel-based
// semaphore enforces MAX_CONCURRENCY across all concurrent Run calls on
// one Runner value; permit release is guaranteed via defer on every exit
// path, including timeout and runtime-unavailable errors.
package runner
