// Package eventlog is the append-only, newline-delimited JSON record of every
// accepted ledger move.
//
// Each line is one ir.LedgerEvent. The file is opened once, in append mode,
// and is never truncated or rewritten. Nothing in this package reconstructs
// store state from the log; Read exists for inspection only.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/flowledger/internal/ir"
)

// FileName is the log file name inside a ledger base directory.
const FileName = "event.log"

// SyncMode controls when appended lines are flushed to stable storage.
type SyncMode string

const (
	SyncAlways SyncMode = "always" // fsync after every append
	SyncNone   SyncMode = "none"   // leave flushing to the OS
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("event log closed")

// Appender receives ledger events in acceptance order.
type Appender interface {
	Append(ev ir.LedgerEvent) error
}

// FileLog appends events to a file.
//
// Thread-safety: Append and Close are safe for concurrent use; lines from
// concurrent appends never interleave.
type FileLog struct {
	mu   sync.Mutex
	f    *os.File
	path string
	sync SyncMode
}

// ParseSyncMode validates a sync mode name. Empty means SyncAlways.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case "", SyncAlways:
		return SyncAlways, nil
	case SyncNone:
		return SyncNone, nil
	}
	return "", fmt.Errorf("invalid event log sync mode %q: must be %q or %q", s, SyncAlways, SyncNone)
}

// Open creates the log (and its directory) if missing and opens it for
// appending. Existing content is preserved.
func Open(path string, mode SyncMode) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileLog{f: f, path: path, sync: mode}, nil
}

// Path returns the file path of the log.
func (l *FileLog) Path() string {
	return l.path
}

// Append writes ev as one JSON line.
func (l *FileLog) Append(ev ir.LedgerEvent) error {
	line, err := MarshalLine(ev)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return ErrClosed
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if l.sync == SyncAlways {
		if err := l.f.Sync(); err != nil {
			return fmt.Errorf("sync event log: %w", err)
		}
	}
	return nil
}

// Close closes the file. Safe to call more than once.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// MarshalLine encodes ev as a newline-terminated JSON record.
func MarshalLine(ev ir.LedgerEvent) ([]byte, error) {
	if ev.MSDDigits == nil {
		ev.MSDDigits = []int8{}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return append(data, '\n'), nil
}

// maxLineSize bounds one log line when reading.
const maxLineSize = 1 << 20

// Read decodes every line of r in order and calls fn for each event.
// Blank lines are skipped; a malformed line stops the read with its line
// number in the error.
func Read(r io.Reader, fn func(ev ir.LedgerEvent) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev ir.LedgerEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("event log line %d: %w", line, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read event log: %w", err)
	}
	return nil
}

// ReadFile returns every event stored at path.
func ReadFile(path string) ([]ir.LedgerEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	events := []ir.LedgerEvent{}
	err = Read(f, func(ev ir.LedgerEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
