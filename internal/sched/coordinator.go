package sched

import (
	"context"
	"fmt"

	"github.com/spotshare/spotshare/internal/store"
)

// Coordinator is the sole writer path to the store. Every mutating sequence
// (split's delete+inserts, overlap-replace's delete+insert, in-place claim)
// runs as one closure inside a serializable store transaction, so readers
// observe either none or all of it. When the store reports a retryable
// collision (version mismatch or serialization abort) the closure is
// retried exactly once against fresh state; a second collision surfaces as
// ErrConflict.
//
// Closures must therefore be idempotent re-reads: fetch current state, base
// all decisions on it, and never carry row versions across attempts.
type Coordinator struct {
	st store.Store
}

// NewCoordinator wraps a store.
func NewCoordinator(st store.Store) *Coordinator {
	return &Coordinator{st: st}
}

// Mutate runs fn transactionally with a single transparent retry on
// retryable conflicts.
func (c *Coordinator) Mutate(ctx context.Context, fn func(store.Tx) error) error {
	err := c.st.Update(ctx, fn)
	if err == nil || !store.Retryable(err) {
		return err
	}

	err = c.st.Update(ctx, fn)
	if err != nil && store.Retryable(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// Read runs fn against a committed snapshot.
func (c *Coordinator) Read(ctx context.Context, fn func(store.Tx) error) error {
	return c.st.View(ctx, fn)
}
