package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var backends = []string{BackendBadger, BackendSQLite}

// createTestStore opens an on-disk store of the given backend under t.TempDir.
func createTestStore(t *testing.T, backend string) *Store {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "db"))
	cfg.Backend = backend
	cfg.GCInterval = 0
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachBackend runs fn once per backend as a subtest.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Helper()
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			fn(t, createTestStore(t, backend))
		})
	}
}
