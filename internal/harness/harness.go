package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/flowledger/internal/ledger"
	"github.com/roach88/flowledger/internal/store"
	"github.com/roach88/flowledger/internal/testutil"
)

// Harness is the scenario execution engine.
type Harness struct {
	store  *store.Store
	ledger *ledger.Ledger
	log    *testutil.MemoryLog
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store for isolation.
//
// Execution flow:
// 1. Open an in-memory store of the scenario's backend
// 2. Build a ledger with a fixed clock and fixed batch ids
// 3. Run every batch, checking expect clauses
// 4. Evaluate assertions against the final store and log
func Run(scenario *Scenario) (*Result, error) {
	backend := scenario.Backend
	if backend == "" {
		backend = store.BackendBadger
	}
	st, err := store.Open(store.InMemoryConfig(backend))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ids := make([]string, len(scenario.Batches))
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", scenario.Name, i)
	}

	h := &Harness{
		store:  st,
		log:    testutil.NewMemoryLog(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	opts := []ledger.Option{
		ledger.WithClock(testutil.NewFixedClock(scenario.ClockMillis)),
		ledger.WithBatchIDs(ledger.NewFixedGenerator(ids...)),
		ledger.WithLogger(h.logger),
	}
	if scenario.CentroidBypass != nil {
		opts = append(opts, ledger.WithCentroidBypass(*scenario.CentroidBypass))
	}
	h.ledger = ledger.New(st, h.log, opts...)

	ctx := context.Background()
	result := NewResult()
	if err := h.executeBatches(ctx, scenario.Batches, result); err != nil {
		return nil, fmt.Errorf("failed to execute batches: %w", err)
	}
	result.Log = append(result.Log, h.log.Events()...)

	actx := &AssertionContext{
		Ledger: h.ledger,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeBatches runs every batch in order. Ledger failures are recorded as
// outcomes, not returned; only harness faults are returned.
func (h *Harness) executeBatches(ctx context.Context, batches []BatchStep, result *Result) error {
	for i, step := range batches {
		events, err := h.ledger.AnchorBatch(ctx, step.Entity, step.Commands)

		outcome := OutcomeOK
		if err != nil {
			var le *ledger.LedgerError
			if !errors.As(err, &le) {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			outcome = string(le.Code)
		}
		result.AddBatchTrace(i, step.Entity, outcome, events)

		if step.Expect != nil {
			want := OutcomeOK
			if step.Expect.Error != "" {
				want = string(step.Expect.Error)
			}
			if outcome != want {
				result.AddError(fmt.Sprintf("batch %d: expected outcome %s, got %s", i, want, outcome))
			}
			if step.Expect.Events != nil && len(events) != *step.Expect.Events {
				result.AddError(fmt.Sprintf("batch %d: expected %d events, got %d", i, *step.Expect.Events, len(events)))
			}
		}

		h.logger.Info("batch completed",
			"batch", i,
			"entity", step.Entity,
			"outcome", outcome,
			"events", len(events),
		)
	}
	return nil
}
