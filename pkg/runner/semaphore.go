package runner

import "context"

// semaphore is a fixed-size token bucket implemented as a buffered
// channel, with guaranteed release on all exit paths. Acquire blocks
// until a slot is free or ctx is cancelled; Release never blocks.
type semaphore chan struct{}

func newSemaphore(size int) semaphore {
	if size <= 0 {
		size = 1
	}
	return make(semaphore, size)
}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() {
	select {
	case <-s:
	default:
	}
}
