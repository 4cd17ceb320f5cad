package harness

import "github.com/roach88/flowledger/internal/ir"

// OutcomeOK marks a batch that committed.
const OutcomeOK = "OK"

// TraceEvent records one batch of a scenario run.
type TraceEvent struct {
	Batch   int              `json:"batch"`
	Entity  uint64           `json:"entity"`
	Outcome string           `json:"outcome"` // OutcomeOK or a ledger error code
	Events  []ir.LedgerEvent `json:"events"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one entry per batch in order.
	Trace []TraceEvent `json:"trace"`

	// Log contains every appended event, including those of failed batches.
	Log []ir.LedgerEvent `json:"log"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Log:    []ir.LedgerEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddBatchTrace appends one batch outcome to the trace.
func (r *Result) AddBatchTrace(batch int, entity uint64, outcome string, events []ir.LedgerEvent) {
	if events == nil {
		events = []ir.LedgerEvent{}
	}
	r.Trace = append(r.Trace, TraceEvent{
		Batch:   batch,
		Entity:  entity,
		Outcome: outcome,
		Events:  events,
	})
}
