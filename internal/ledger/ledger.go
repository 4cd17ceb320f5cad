package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/flowledger/internal/centroid"
	"github.com/roach88/flowledger/internal/eventlog"
	"github.com/roach88/flowledger/internal/flowrule"
	"github.com/roach88/flowledger/internal/ir"
	"github.com/roach88/flowledger/internal/metrics"
	"github.com/roach88/flowledger/internal/msd"
	"github.com/roach88/flowledger/internal/registry"
	"github.com/roach88/flowledger/internal/store"
)

// StoreDir is the store directory inside a ledger base path.
const StoreDir = "db"

// Ledger anchors batches of moves for one store and one event log.
//
// Thread-safety model:
//   - AnchorBatch may be called from any goroutine; the backends and the
//     file log do their own locking.
//   - Two concurrent batches for the same (entity, prime) race on the
//     read-modify-write of the exponent. Callers must serialize them.
type Ledger struct {
	store   *store.Store
	log     eventlog.Appender
	clock   Clock
	ids     BatchIDGenerator
	metrics *metrics.Metrics
	logger  *slog.Logger
	bypass  bool

	// owned resources, closed by Close
	closers []io.Closer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the batch timestamp source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithBatchIDs sets the correlation id generator. Default: UUIDv7Generator.
func WithBatchIDs(g BatchIDGenerator) Option {
	return func(l *Ledger) {
		l.ids = g
	}
}

// WithMetrics records batch outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithLogger sets the diagnostic logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithCentroidBypass controls whether even→odd moves the flow rules deny
// may pass through the virtual centroid.
//
// Default: true. With the bypass disabled every denied move fails the batch
// with ErrCodeForbiddenTransition.
func WithCentroidBypass(enabled bool) Option {
	return func(l *Ledger) {
		l.bypass = enabled
	}
}

// New builds a Ledger over an existing store and event log. The caller keeps
// ownership of both.
func New(s *store.Store, log eventlog.Appender, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		log:    log,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		bypass: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config describes a ledger rooted at a base directory.
type Config struct {
	// Base is the root directory. The store lives in "<Base>/db" and the
	// event log in "<Base>/event.log".
	Base string

	// Store tunes the backend. Dir and InMemory are overwritten by Open.
	Store store.Config

	// LogSync is the event log sync mode.
	LogSync eventlog.SyncMode
}

// Open creates the directory tree, opens (creating if missing) both store
// partitions and the event log, and returns a Ledger owning them.
// The event log is never truncated.
func Open(cfg Config, opts ...Option) (*Ledger, error) {
	if cfg.Base == "" {
		return nil, errors.New("open ledger: base path is required")
	}
	if err := os.MkdirAll(cfg.Base, 0o750); err != nil {
		return nil, fmt.Errorf("open ledger: create base directory: %w", err)
	}

	storeCfg := cfg.Store
	storeCfg.Dir = filepath.Join(cfg.Base, StoreDir)
	storeCfg.InMemory = false

	st, err := store.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	log, err := eventlog.Open(filepath.Join(cfg.Base, eventlog.FileName), cfg.LogSync)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := New(st, log, opts...)
	l.closers = []io.Closer{log, st}
	return l, nil
}

// Close releases resources opened by Open. A Ledger built with New owns
// nothing and Close is a no-op.
func (l *Ledger) Close() error {
	var errs []error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

// Store returns the underlying store.
func (l *Ledger) Store() *store.Store {
	return l.store
}

// AnchorBatch applies commands to entity in order and returns the events of
// the accepted moves. No-op commands produce no event.
//
// For each command:
//  1. resolve the prime's home node (unknown prime fails the call)
//  2. read the current exponent from factors, defaulting to the home index
//  3. delta = target - current; skip the command when delta is 0
//  4. via centroid = even home, odd target, edge not whitelisted
//  5. resolve home and target to nodes (index outside 0..7 fails the call)
//  6. check the flow rules from the home node; a denied move fails the call
//     unless it goes via the centroid, which flips the centroid digit
//  7. encode delta as MSD digits and append the event to the log
//  8. stage the new exponent into factors and postings
//
// The staged writes commit in one atomic batch after the last command. Any
// failure aborts the rest of the call and commits nothing, but events for
// commands already processed remain in the log.
//
// Validation always starts from the prime's home node, never from the
// entity's accumulated exponent.
//
// ctx is detached from cancellation: a batch runs to completion or fails.
func (l *Ledger) AnchorBatch(ctx context.Context, entity uint64, cmds []ir.Command) ([]ir.LedgerEvent, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	ts := l.clock.NowMillis()
	logger := l.logger.With(
		slog.String("batch", l.ids.Generate()),
		slog.Uint64("entity", entity),
	)

	events, err := l.anchor(ctx, entity, cmds, ts, logger)
	l.metrics.ObserveBatch(outcome(err), time.Since(start))
	if err != nil {
		logger.Warn("anchor batch failed", slog.Int("commands", len(cmds)), slog.Any("error", err))
		return nil, err
	}

	logger.Debug("anchor batch committed",
		slog.Int("commands", len(cmds)),
		slog.Int("events", len(events)),
		slog.Uint64("timestamp", ts),
	)
	return events, nil
}

func (l *Ledger) anchor(ctx context.Context, entity uint64, cmds []ir.Command, ts uint64, logger *slog.Logger) ([]ir.LedgerEvent, error) {
	digit := centroid.Now(ts)
	batch := store.NewBatch()
	events := make([]ir.LedgerEvent, 0, len(cmds))

	for i, cmd := range cmds {
		home, ok := registry.PrimeToNode(cmd.Prime)
		if !ok {
			return nil, newUnknownPrimeError(entity, i, cmd.Prime)
		}

		current, found, err := l.store.Exponent(ctx, entity, cmd.Prime)
		if err != nil {
			return nil, newIOError(entity, i, cmd.Prime, "read exponent", err)
		}
		if !found {
			current = int32(home.Index())
		}

		delta := int64(cmd.Target) - int64(current)
		if delta == 0 {
			l.metrics.NoOp()
			continue
		}

		via := home.IsEven() && cmd.Target%2 == 1 && !flowrule.Whitelisted(home, ir.Node(cmd.Target))

		src, err := ir.NodeFromIndex(home.Index())
		if err != nil {
			return nil, newInvalidNodeError(entity, i, cmd.Prime, "home", err)
		}
		dst, err := ir.NodeFromIndex(int(cmd.Target))
		if err != nil {
			return nil, newInvalidNodeError(entity, i, cmd.Prime, "target", err)
		}

		if !flowrule.TransitionAllowed(src, dst) {
			if !via || !l.bypass {
				return nil, newForbiddenError(entity, i, cmd.Prime, src, dst)
			}
		}
		if via {
			digit = centroid.Flip(digit)
		}

		ev := ir.LedgerEvent{
			EntityID:      entity,
			Prime:         uint32(cmd.Prime),
			MSDDigits:     msd.Encode(delta),
			ViaCentroid:   via,
			CentroidDigit: uint8(digit),
			Timestamp:     ts,
		}
		if err := l.log.Append(ev); err != nil {
			return nil, newIOError(entity, i, cmd.Prime, "append event", err)
		}

		l.store.StageExponent(batch, entity, cmd.Prime, int32(int64(current)+delta))
		events = append(events, ev)
		l.metrics.EventAnchored(via)

		logger.Debug("move accepted",
			slog.Int("command", i),
			slog.Uint64("prime", uint64(cmd.Prime)),
			slog.String("edge", src.String()+"→"+dst.String()),
			slog.Int64("delta", delta),
			slog.Bool("via_c", via),
		)
	}

	if err := l.store.Commit(ctx, batch); err != nil {
		return nil, newIOError(entity, -1, 0, "commit batch", err)
	}
	return events, nil
}

// Exponent returns the entity's exponent for prime, defaulting to the
// prime's home node index when nothing is stored.
func (l *Ledger) Exponent(ctx context.Context, entity uint64, prime ir.Prime) (int32, error) {
	home, ok := registry.HomeIndex(prime)
	if !ok {
		return 0, newUnknownPrimeError(entity, -1, prime)
	}
	exp, found, err := l.store.Exponent(ctx, entity, prime)
	if err != nil {
		return 0, newIOError(entity, -1, prime, "read exponent", err)
	}
	if !found {
		return int32(home), nil
	}
	return exp, nil
}

// Factors returns every stored exponent of entity.
func (l *Ledger) Factors(ctx context.Context, entity uint64) ([]ir.Factor, error) {
	return l.store.Factors(ctx, entity)
}

// Postings returns every entity with a stored exponent for prime.
func (l *Ledger) Postings(ctx context.Context, prime ir.Prime) ([]ir.Posting, error) {
	if !registry.Known(prime) {
		return nil, newUnknownPrimeError(0, -1, prime)
	}
	return l.store.Postings(ctx, prime)
}

// Traverse walks the flow graph from start, seeding the centroid digit from
// the ledger clock.
func (l *Ledger) Traverse(start ir.Node, depth int) (flowrule.Path, error) {
	return flowrule.Traverse(start, depth, centroid.Now(l.clock.NowMillis()))
}
