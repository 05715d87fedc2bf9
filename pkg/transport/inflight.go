package transport

import "sync/atomic"

// ConcurrencyGate bounds the number of requests the Transport admits
// concurrently, independent of the Runner's own MAX_CONCURRENCY semaphore.
// It exists to fail fast with a clear 429 before a request even reaches the
// Orchestrator, rather than queuing indefinitely behind the Runner's
// container slots.
//
// Grounded on cmd/sandbox-server's atomic in-flight counter + fast-reject
// capacity check.
type ConcurrencyGate struct {
	capacity int32
	current  atomic.Int32
}

// NewConcurrencyGate creates a gate that admits up to capacity concurrent
// requests. capacity <= 0 means unlimited (the gate always admits).
func NewConcurrencyGate(capacity int) *ConcurrencyGate {
	return &ConcurrencyGate{capacity: int32(capacity)}
}

// Enter attempts to admit one request. Returns a release function to call
// when the request completes, and ok=false if the gate is at capacity (the
// release function is nil in that case).
func (g *ConcurrencyGate) Enter() (release func(), ok bool) {
	if g.capacity <= 0 {
		return func() {}, true
	}

	n := g.current.Add(1)
	if n > g.capacity {
		g.current.Add(-1)
		return nil, false
	}

	return func() { g.current.Add(-1) }, true
}

// Load returns the current number of admitted in-flight requests.
func (g *ConcurrencyGate) Load() int {
	return int(g.current.Load())
}

// Capacity returns the gate's configured capacity.
func (g *ConcurrencyGate) Capacity() int {
	return int(g.capacity)
}
