package ledger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowledger/internal/centroid"
	"github.com/roach88/flowledger/internal/eventlog"
	"github.com/roach88/flowledger/internal/ir"
	"github.com/roach88/flowledger/internal/metrics"
	"github.com/roach88/flowledger/internal/msd"
	"github.com/roach88/flowledger/internal/store"
	"github.com/roach88/flowledger/internal/testutil"
)

// evenMillis seeds the centroid digit with 0.
const evenMillis = 1_700_000_000_000

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	ledger *Ledger
	store  *store.Store
	log    *testutil.MemoryLog
	clock  *testutil.FixedClock
}

func newFixture(t *testing.T, backend string, opts ...Option) *fixture {
	t.Helper()
	st, err := store.Open(store.InMemoryConfig(backend))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store: st,
		log:   testutil.NewMemoryLog(),
		clock: testutil.NewFixedClock(evenMillis),
	}
	opts = append([]Option{WithClock(f.clock), WithLogger(discard)}, opts...)
	f.ledger = New(st, f.log, opts...)
	return f
}

func forEachBackend(t *testing.T, fn func(t *testing.T, backend string)) {
	t.Helper()
	for _, backend := range []string{store.BackendBadger, store.BackendSQLite} {
		t.Run(backend, func(t *testing.T) { fn(t, backend) })
	}
}

func rawGet(t *testing.T, s *store.Store, p store.Partition, key string) (string, bool) {
	t.Helper()
	v, found, err := s.Backend().Get(context.Background(), p, key)
	require.NoError(t, err)
	return string(v), found
}

func assertEmptyStore(t *testing.T, s *store.Store, entity uint64) {
	t.Helper()
	factors, err := s.Factors(context.Background(), entity)
	require.NoError(t, err)
	assert.Empty(t, factors, "store must not be mutated")
}

func TestAnchorBatch_BasicAcceptedMove(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		f := newFixture(t, backend)

		events, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 3, Target: 2}})
		require.NoError(t, err)
		require.Len(t, events, 1)

		ev := events[0]
		assert.Equal(t, uint64(1), ev.EntityID)
		assert.Equal(t, uint32(3), ev.Prime)
		assert.Equal(t, []int8{1}, ev.MSDDigits)
		assert.False(t, ev.ViaCentroid)
		assert.Equal(t, uint8(0), ev.CentroidDigit)
		assert.Equal(t, uint64(evenMillis), ev.Timestamp)

		v, found := rawGet(t, f.store, store.Factors, "1:3")
		require.True(t, found)
		assert.Equal(t, "2", v)

		v, found = rawGet(t, f.store, store.Postings, "3:1")
		require.True(t, found)
		assert.Equal(t, "2", v)

		assert.Equal(t, events, f.log.Events())
	})
}

func TestAnchorBatch_CentroidBypass(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		f := newFixture(t, backend)

		// S3→S6 is odd→even: denied, and only even homes may use the centroid
		_, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 7, Target: 6}})
		assert.True(t, IsForbiddenTransition(err))

		f2 := newFixture(t, backend)
		events, err := f2.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 2, Target: 3}})
		require.NoError(t, err)
		require.Len(t, events, 1)

		ev := events[0]
		assert.True(t, ev.ViaCentroid)
		assert.Equal(t, uint8(1), ev.CentroidDigit, "digit must differ from the seed 0")
		assert.Equal(t, int64(3), msd.Digits(ev.MSDDigits).Int())

		exp, err := f2.ledger.Exponent(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int32(3), exp)
	})
}

func TestAnchorBatch_CentroidFlipsAccumulate(t *testing.T) {
	f := newFixture(t, store.BackendBadger)
	f.clock.Set(evenMillis + 1) // seed 1

	events, err := f.ledger.AnchorBatch(context.Background(), 9, []ir.Command{
		{Prime: 2, Target: 3},  // flip → 0
		{Prime: 3, Target: 3},  // S1→S3, no flip
		{Prime: 11, Target: 1}, // S4→S1 via centroid, flip → 1
	})
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, []uint8{0, 0, 1}, []uint8{events[0].CentroidDigit, events[1].CentroidDigit, events[2].CentroidDigit})
	assert.Equal(t, []bool{true, false, true}, []bool{events[0].ViaCentroid, events[1].ViaCentroid, events[2].ViaCentroid})
}

func TestAnchorBatch_StrictModeRejectsBypass(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		f := newFixture(t, backend, WithCentroidBypass(false))

		events, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 5, Target: 1}})
		require.Error(t, err)
		assert.Nil(t, events)
		assert.True(t, IsForbiddenTransition(err))

		var le *LedgerError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeForbiddenTransition, le.Code)
		assert.Equal(t, ir.S2, le.Src)
		assert.Equal(t, ir.S1, le.Dst)
		assert.Equal(t, 0, le.Index)
		assert.Equal(t, ir.Prime(5), le.Prime)

		assertEmptyStore(t, f.store, 1)
		assert.Zero(t, f.log.Len())
	})
}

func TestAnchorBatch_DefaultModeAbsorbsCanonicalBypass(t *testing.T) {
	f := newFixture(t, store.BackendBadger)

	events, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 5, Target: 1}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].ViaCentroid)
	assert.Equal(t, []int8{-1}, events[0].MSDDigits)
}

func TestAnchorBatch_OddToEvenForbiddenInBothModes(t *testing.T) {
	for _, bypass := range []bool{true, false} {
		f := newFixture(t, store.BackendBadger, WithCentroidBypass(bypass))

		_, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 3, Target: 4}})
		assert.True(t, IsForbiddenTransition(err), "bypass=%v", bypass)
	}
}

func TestAnchorBatch_NoOpSkipped(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		f := newFixture(t, backend)

		// prime 5 sits at its home index 2; no validation, no event, no write
		events, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 5, Target: 2}})
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Zero(t, f.log.Len())
		assertEmptyStore(t, f.store, 1)
	})
}

func TestAnchorBatch_NoOpAfterMove(t *testing.T) {
	f := newFixture(t, store.BackendBadger)
	ctx := context.Background()

	_, err := f.ledger.AnchorBatch(ctx, 1, []ir.Command{{Prime: 3, Target: 2}})
	require.NoError(t, err)

	// Target 2 again: delta 0 against the committed exponent
	events, err := f.ledger.AnchorBatch(ctx, 1, []ir.Command{{Prime: 3, Target: 2}})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, f.log.Len())
}

func TestAnchorBatch_NoOpSkipsFlowRules(t *testing.T) {
	tests := []struct {
		name   string
		stored int32
		target uint8
	}{
		// S1→S4 is a forbidden odd→even edge
		{"forbidden edge", 4, 4},
		// 9 is not a node index
		{"target outside nodes", 9, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachBackend(t, func(t *testing.T, backend string) {
				f := newFixture(t, backend, WithCentroidBypass(false))
				ctx := context.Background()

				b := store.NewBatch()
				f.store.StageExponent(b, 1, 3, tt.stored)
				require.NoError(t, f.store.Commit(ctx, b))

				events, err := f.ledger.AnchorBatch(ctx, 1, []ir.Command{{Prime: 3, Target: tt.target}})
				require.NoError(t, err)
				assert.Empty(t, events)
				assert.Zero(t, f.log.Len())

				exp, err := f.ledger.Exponent(ctx, 1, 3)
				require.NoError(t, err)
				assert.Equal(t, tt.stored, exp)
			})
		})
	}
}

func TestAnchorBatch_UnknownPrime(t *testing.T) {
	f := newFixture(t, store.BackendBadger)

	_, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{
		{Prime: 3, Target: 2},
		{Prime: 23, Target: 0},
	})
	require.Error(t, err)
	assert.True(t, IsUnknownPrime(err))
	assert.False(t, IsIOError(err))

	var le *LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Index)
	assert.Contains(t, err.Error(), "UNKNOWN_PRIME")

	// Log before stage: the first command's event stays, the store is untouched
	assert.Equal(t, 1, f.log.Len())
	assertEmptyStore(t, f.store, 1)
}

func TestAnchorBatch_InvalidTarget(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		f := newFixture(t, backend)

		_, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 3, Target: 9}})
		require.Error(t, err)
		assert.True(t, IsInvalidNode(err))
		assert.ErrorIs(t, err, ir.ErrInvalidNode)
		assertEmptyStore(t, f.store, 1)
	})
}

func TestAnchorBatch_PartialFailureLeavesLogEntries(t *testing.T) {
	f := newFixture(t, store.BackendSQLite)

	_, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{
		{Prime: 3, Target: 2},
		{Prime: 2, Target: 3},
		{Prime: 11, Target: 99},
	})
	require.Error(t, err)
	assert.True(t, IsInvalidNode(err))

	events := f.log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, uint32(3), events[0].Prime)
	assert.Equal(t, uint32(2), events[1].Prime)
	assertEmptyStore(t, f.store, 1)
}

func TestAnchorBatch_LogFailure(t *testing.T) {
	st, err := store.Open(store.InMemoryConfig(store.BackendBadger))
	require.NoError(t, err)
	defer st.Close()

	log := testutil.NewFailingLog(2)
	l := New(st, log, WithLogger(discard))

	_, err = l.AnchorBatch(context.Background(), 1, []ir.Command{
		{Prime: 3, Target: 2},
		{Prime: 7, Target: 5},
	})
	require.Error(t, err)
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, testutil.ErrInjected)

	assert.Equal(t, 1, log.Len())
	assertEmptyStore(t, st, 1)
}

func TestAnchorBatch_CommitFailure(t *testing.T) {
	inner, err := store.Open(store.InMemoryConfig(store.BackendBadger))
	require.NoError(t, err)
	defer inner.Close()

	backend := testutil.NewFailingBackend(inner.Backend())
	log := testutil.NewMemoryLog()
	l := New(store.New(backend), log, WithLogger(discard))

	_, err = l.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 3, Target: 2}})
	require.Error(t, err)
	assert.True(t, IsIOError(err))

	var le *LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, -1, le.Index)
	assert.Equal(t, int64(1), backend.Commits())

	assert.Equal(t, 1, log.Len())
	assertEmptyStore(t, inner, 1)
}

func TestAnchorBatch_SamePrimeTwiceReadsCommittedState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		f := newFixture(t, backend)

		events, err := f.ledger.AnchorBatch(context.Background(), 1, []ir.Command{
			{Prime: 3, Target: 2},
			{Prime: 3, Target: 3},
		})
		require.NoError(t, err)
		require.Len(t, events, 2)

		// Both deltas are computed from the home default 1, not from the
		// write staged by the first command.
		assert.Equal(t, int64(1), msd.Digits(events[0].MSDDigits).Int())
		assert.Equal(t, int64(2), msd.Digits(events[1].MSDDigits).Int())

		v, _ := rawGet(t, f.store, store.Factors, "1:3")
		assert.Equal(t, "3", v, "last staged write wins")
	})
}

func TestAnchorBatch_EntitiesIndependent(t *testing.T) {
	f := newFixture(t, store.BackendBadger)
	ctx := context.Background()

	_, err := f.ledger.AnchorBatch(ctx, 1, []ir.Command{{Prime: 3, Target: 2}})
	require.NoError(t, err)
	_, err = f.ledger.AnchorBatch(ctx, 2, []ir.Command{{Prime: 3, Target: 7}})
	require.NoError(t, err)

	postings, err := f.ledger.Postings(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []ir.Posting{{Entity: 1, Exponent: 2}, {Entity: 2, Exponent: 7}}, postings)

	factors, err := f.ledger.Factors(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []ir.Factor{{Prime: 3, Exponent: 7}}, factors)
}

func TestAnchorBatch_CanceledContextStillCommits(t *testing.T) {
	f := newFixture(t, store.BackendSQLite)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := f.ledger.AnchorBatch(ctx, 1, []ir.Command{{Prime: 3, Target: 2}})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestExponent_DefaultsToHomeIndex(t *testing.T) {
	f := newFixture(t, store.BackendBadger)
	ctx := context.Background()

	for i, p := range ir.Primes {
		exp, err := f.ledger.Exponent(ctx, 42, p)
		require.NoError(t, err)
		assert.Equal(t, int32(i), exp)
	}

	_, err := f.ledger.Exponent(ctx, 42, 4)
	assert.True(t, IsUnknownPrime(err))

	_, err = f.ledger.Postings(ctx, 4)
	assert.True(t, IsUnknownPrime(err))
}

func TestAnchorBatch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, store.BackendBadger, WithMetrics(metrics.New(reg)))
	ctx := context.Background()

	_, err := f.ledger.AnchorBatch(ctx, 1, []ir.Command{
		{Prime: 2, Target: 3},
		{Prime: 5, Target: 2},
	})
	require.NoError(t, err)
	_, err = f.ledger.AnchorBatch(ctx, 1, []ir.Command{{Prime: 23, Target: 0}})
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, metrics.WriteText(&buf, reg))
	out := buf.String()
	assert.Contains(t, out, `flowledger_batches_total{outcome="ok"} 1`)
	assert.Contains(t, out, `flowledger_batches_total{outcome="unknown_prime"} 1`)
	assert.Contains(t, out, "flowledger_events_anchored_total 1")
	assert.Contains(t, out, "flowledger_centroid_flips_total 1")
	assert.Contains(t, out, "flowledger_noop_commands_total 1")
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend string) {
		base := t.TempDir()
		cfg := Config{
			Base:    base,
			Store:   store.DefaultConfig(""),
			LogSync: eventlog.SyncAlways,
		}
		cfg.Store.Backend = backend
		cfg.Store.GCInterval = 0

		l, err := Open(cfg, WithClock(testutil.NewFixedClock(evenMillis)), WithLogger(discard))
		require.NoError(t, err)
		_, err = l.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 3, Target: 2}})
		require.NoError(t, err)
		require.NoError(t, l.Close())

		l, err = Open(cfg, WithClock(testutil.NewFixedClock(evenMillis)), WithLogger(discard))
		require.NoError(t, err)
		defer l.Close()

		exp, err := l.Exponent(context.Background(), 1, 3)
		require.NoError(t, err)
		assert.Equal(t, int32(2), exp)

		_, err = l.AnchorBatch(context.Background(), 1, []ir.Command{{Prime: 3, Target: 3}})
		require.NoError(t, err)

		events, err := eventlog.ReadFile(filepath.Join(base, eventlog.FileName))
		require.NoError(t, err)
		require.Len(t, events, 2, "log is appended, never truncated")
		assert.Equal(t, []int8{1}, events[0].MSDDigits)
		assert.Equal(t, []int8{1}, events[1].MSDDigits)
	})
}

func TestOpen_RequiresBase(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestTraverse_UsesClockSeed(t *testing.T) {
	f := newFixture(t, store.BackendBadger)
	f.clock.Set(evenMillis + 1)

	path, err := f.ledger.Traverse(ir.S0, 1)
	require.NoError(t, err)
	require.Len(t, path.Steps, 1)
	assert.Equal(t, ir.S2, path.Steps[0].Dst)
	assert.Equal(t, centroid.Digit(1), path.FinalCentroid)
}
