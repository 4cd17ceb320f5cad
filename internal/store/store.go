package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/flowledger/internal/ir"
)

// Partition names one independently keyed half of the store.
type Partition string

const (
	// Factors maps "{entity}:{prime}" to the exponent.
	Factors Partition = "factors"
	// Postings maps "{prime}:{entity}" to the same exponent.
	Postings Partition = "postings"
)

// Partitions lists every partition the store creates on open.
var Partitions = []Partition{Factors, Postings}

func (p Partition) valid() bool {
	return p == Factors || p == Postings
}

// Backend names.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Defaults for Config.
const (
	DefaultGCInterval     = 5 * time.Minute
	DefaultGCDiscardRatio = 0.5
)

var (
	// ErrUnknownPartition is returned for a partition outside Partitions.
	ErrUnknownPartition = errors.New("unknown partition")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Backend is an embedded ordered key-value store with named partitions and
// one atomic multi-partition commit.
type Backend interface {
	// Get returns the value for key, or found=false if absent.
	Get(ctx context.Context, p Partition, key string) (value []byte, found bool, err error)

	// Scan calls fn for every key in p starting with prefix, in key order.
	Scan(ctx context.Context, p Partition, prefix string, fn func(key string, value []byte) error) error

	// Commit applies every put in b atomically, or none of them.
	Commit(ctx context.Context, b *Batch) error

	Close() error
}

// Config selects and tunes a backend.
type Config struct {
	// Backend is BackendBadger (default) or BackendSQLite.
	Backend string

	// Dir is the store directory, conventionally "<base>/db".
	// Ignored when InMemory is true.
	Dir string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool

	// GCInterval is how often badger runs value log GC. 0 disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio before badger GC rewrites.
	GCDiscardRatio float64

	// Logger receives backend diagnostics. nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults for a store rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{
		Backend:        BackendBadger,
		Dir:            dir,
		SyncWrites:     true,
		GCInterval:     DefaultGCInterval,
		GCDiscardRatio: DefaultGCDiscardRatio,
	}
}

// InMemoryConfig returns a configuration for tests: no disk, no sync, no GC.
func InMemoryConfig(backend string) Config {
	return Config{
		Backend:  backend,
		InMemory: true,
	}
}

// Store is the typed view of a Backend used by the ledger.
//
// Thread-safety: Store adds no locking of its own; both backends are safe
// for concurrent readers and writers.
type Store struct {
	backend Backend
}

// Open opens the backend selected by cfg and creates both partitions if
// they are missing.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("open store: dir is required for a persistent store")
	}

	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case "", BackendBadger:
		b, err = openBadger(cfg)
	case BackendSQLite:
		b, err = openSQLite(cfg)
	default:
		return nil, fmt.Errorf("open store: %w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{backend: b}, nil
}

// New wraps an already opened backend.
func New(b Backend) *Store {
	return &Store{backend: b}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close closes the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Exponent reads factors["{entity}:{prime}"].
func (s *Store) Exponent(ctx context.Context, entity uint64, prime ir.Prime) (int32, bool, error) {
	raw, found, err := s.backend.Get(ctx, Factors, FactorKey(entity, prime))
	if err != nil {
		return 0, false, fmt.Errorf("read exponent: %w", err)
	}
	if !found {
		return 0, false, nil
	}
	exp, err := DecodeExponent(raw)
	if err != nil {
		return 0, false, fmt.Errorf("read exponent %s: %w", FactorKey(entity, prime), err)
	}
	return exp, true, nil
}

// StageExponent stages the mirrored factors and postings writes for one
// (entity, prime) pair.
func (s *Store) StageExponent(b *Batch, entity uint64, prime ir.Prime, exp int32) {
	value := EncodeExponent(exp)
	b.Put(Factors, FactorKey(entity, prime), value)
	b.Put(Postings, PostingKey(prime, entity), value)
}

// Commit applies a staged batch atomically.
func (s *Store) Commit(ctx context.Context, b *Batch) error {
	return s.backend.Commit(ctx, b)
}

// Factors returns every stored exponent of entity, ordered by prime.
func (s *Store) Factors(ctx context.Context, entity uint64) ([]ir.Factor, error) {
	factors := []ir.Factor{}
	err := s.backend.Scan(ctx, Factors, EntityPrefix(entity), func(key string, value []byte) error {
		_, prime, err := ParseFactorKey(key)
		if err != nil {
			return err
		}
		exp, err := DecodeExponent(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		factors = append(factors, ir.Factor{Prime: prime, Exponent: exp})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read factors: %w", err)
	}
	sort.Slice(factors, func(i, j int) bool { return factors[i].Prime < factors[j].Prime })
	return factors, nil
}

// Postings returns every entity holding an exponent for prime, ordered by
// entity.
func (s *Store) Postings(ctx context.Context, prime ir.Prime) ([]ir.Posting, error) {
	postings := []ir.Posting{}
	err := s.backend.Scan(ctx, Postings, PrimePrefix(prime), func(key string, value []byte) error {
		_, entity, err := ParsePostingKey(key)
		if err != nil {
			return err
		}
		exp, err := DecodeExponent(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		postings = append(postings, ir.Posting{Entity: entity, Exponent: exp})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read postings: %w", err)
	}
	sort.Slice(postings, func(i, j int) bool { return postings[i].Entity < postings[j].Entity })
	return postings, nil
}
