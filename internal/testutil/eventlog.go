package testutil

import (
	"errors"
	"sync"

	"github.com/roach88/flowledger/internal/ir"
)

// ErrInjected is the failure returned by the failing test doubles.
var ErrInjected = errors.New("injected failure")

// MemoryLog records appended events in memory.
//
// Optionally it fails the Nth append (1-based) with ErrInjected so tests can
// observe a batch aborted halfway through.
//
// Thread-safety: safe for concurrent use via internal mutex.
type MemoryLog struct {
	mu     sync.Mutex
	events []ir.LedgerEvent
	calls  int
	failAt int
}

// NewMemoryLog creates a log that never fails.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// NewFailingLog creates a log whose n-th Append fails.
func NewFailingLog(n int) *MemoryLog {
	return &MemoryLog{failAt: n}
}

// Append records ev.
func (l *MemoryLog) Append(ev ir.LedgerEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failAt > 0 && l.calls == l.failAt {
		return ErrInjected
	}
	l.events = append(l.events, ev)
	return nil
}

// Events returns a copy of every recorded event in append order.
func (l *MemoryLog) Events() []ir.LedgerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ir.LedgerEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
