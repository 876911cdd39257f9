package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Gate bounds how many engine processes run at once. With a size of 1 every
// search in the process is serialized.
type Gate struct {
	sem  *semaphore.Weighted
	size int64
}

// NewGate creates a gate with size slots. Sizes below 1 are raised to 1.
func NewGate(size int) *Gate {
	if size < 1 {
		size = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Acquire blocks until a slot is free. It fails with ErrLock when ctx ends
// first, in which case the caller must not run the engine.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrLock, err)
	}
	return nil
}

// Release frees a slot obtained by Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Size returns the number of slots.
func (g *Gate) Size() int {
	return int(g.size)
}
