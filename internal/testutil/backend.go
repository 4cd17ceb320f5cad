package testutil

import (
	"context"
	"sync/atomic"

	"github.com/roach88/flowledger/internal/store"
)

// FailingBackend wraps a store.Backend and fails Commit with ErrInjected
// while FailCommits is set. Reads pass through.
type FailingBackend struct {
	store.Backend
	FailCommits atomic.Bool
	commits     atomic.Int64
}

// NewFailingBackend wraps b with commits failing from the start.
func NewFailingBackend(b store.Backend) *FailingBackend {
	fb := &FailingBackend{Backend: b}
	fb.FailCommits.Store(true)
	return fb
}

// Commit fails or delegates to the wrapped backend.
func (f *FailingBackend) Commit(ctx context.Context, b *store.Batch) error {
	f.commits.Add(1)
	if f.FailCommits.Load() {
		return ErrInjected
	}
	return f.Backend.Commit(ctx, b)
}

// Commits returns how many times Commit was called.
func (f *FailingBackend) Commits() int64 {
	return f.commits.Load()
}
