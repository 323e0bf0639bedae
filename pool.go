package html2pdf

import (
	"context"
	"runtime"
)

// Concurrency sizing constants.
const (
	// MinConcurrency ensures at least one render can run.
	MinConcurrency = 1

	// MaxConcurrency caps simultaneous browsers to limit memory (~200MB each).
	MaxConcurrency = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// renderSlots bounds the number of browser sessions alive at once.
// Sessions are never reused; a slot only grants permission to start one.
type renderSlots struct {
	sem chan struct{}
}

func newRenderSlots(n int) *renderSlots {
	if n < MinConcurrency {
		n = MinConcurrency
	}
	return &renderSlots{sem: make(chan struct{}, n)}
}

// acquire blocks until a slot is free or ctx ends.
func (s *renderSlots) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *renderSlots) release() {
	<-s.sem
}

// size returns the slot capacity.
func (s *renderSlots) size() int {
	return cap(s.sem)
}

// inUse returns the number of held slots.
func (s *renderSlots) inUse() int {
	return len(s.sem)
}

// ResolveConcurrency determines how many renders may run at once.
// An explicit value wins and may exceed MaxConcurrency; otherwise it is
// derived from GOMAXPROCS (container-aware through automaxprocs).
func ResolveConcurrency(n int) int {
	if n > 0 {
		return n
	}
	return min(max(runtime.GOMAXPROCS(0)/cpuDivisor, MinConcurrency), MaxConcurrency)
}
