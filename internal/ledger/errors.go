package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/flowledger/internal/ir"
	"github.com/roach88/flowledger/internal/metrics"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeUnknownPrime indicates a command references a prime outside the universe.
	ErrCodeUnknownPrime ErrorCode = "UNKNOWN_PRIME"

	// ErrCodeInvalidNode indicates a home or target node index outside 0..7.
	ErrCodeInvalidNode ErrorCode = "INVALID_NODE"

	// ErrCodeForbiddenTransition indicates the flow rules deny the move and
	// the centroid cannot absorb it.
	ErrCodeForbiddenTransition ErrorCode = "FORBIDDEN_TRANSITION"

	// ErrCodeIO indicates the store or event log failed.
	ErrCodeIO ErrorCode = "IO"
)

// LedgerError is the single error an AnchorBatch call fails with.
//
// Index is the position of the failing command in the batch, or -1 when the
// failure is not tied to one command (the final commit).
type LedgerError struct {
	Code    ErrorCode
	Message string
	Entity  uint64
	Index   int
	Prime   ir.Prime

	// Src and Dst are set for forbidden transitions only.
	Src ir.Node
	Dst ir.Node

	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	msg := fmt.Sprintf("%s: %s (entity=%d", e.Code, e.Message, e.Entity)
	if e.Index >= 0 {
		msg += fmt.Sprintf(", command=%d, prime=%d", e.Index, e.Prime)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsUnknownPrime reports whether err is an unknown-prime failure.
func IsUnknownPrime(err error) bool { return hasCode(err, ErrCodeUnknownPrime) }

// IsInvalidNode reports whether err is an invalid-node failure.
func IsInvalidNode(err error) bool { return hasCode(err, ErrCodeInvalidNode) }

// IsForbiddenTransition reports whether err is a forbidden-transition failure.
func IsForbiddenTransition(err error) bool { return hasCode(err, ErrCodeForbiddenTransition) }

// IsIOError reports whether err is a store or event log failure.
func IsIOError(err error) bool { return hasCode(err, ErrCodeIO) }

func newUnknownPrimeError(entity uint64, index int, prime ir.Prime) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeUnknownPrime,
		Message: fmt.Sprintf("prime %d is not in the registry", prime),
		Entity:  entity,
		Index:   index,
		Prime:   prime,
	}
}

func newInvalidNodeError(entity uint64, index int, prime ir.Prime, role string, err error) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeInvalidNode,
		Message: "invalid " + role + " node",
		Entity:  entity,
		Index:   index,
		Prime:   prime,
		Err:     err,
	}
}

func newForbiddenError(entity uint64, index int, prime ir.Prime, src, dst ir.Node) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeForbiddenTransition,
		Message: fmt.Sprintf("transition %s→%s forbidden", src, dst),
		Entity:  entity,
		Index:   index,
		Prime:   prime,
		Src:     src,
		Dst:     dst,
	}
}

func newIOError(entity uint64, index int, prime ir.Prime, op string, err error) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeIO,
		Message: op,
		Entity:  entity,
		Index:   index,
		Prime:   prime,
		Err:     err,
	}
}

// outcome maps a batch result to its metrics label.
func outcome(err error) string {
	var le *LedgerError
	if err == nil {
		return metrics.OutcomeOK
	}
	if !errors.As(err, &le) {
		return metrics.OutcomeIO
	}
	switch le.Code {
	case ErrCodeUnknownPrime:
		return metrics.OutcomeUnknownPrime
	case ErrCodeInvalidNode:
		return metrics.OutcomeInvalidNode
	case ErrCodeForbiddenTransition:
		return metrics.OutcomeForbiddenTransition
	}
	return metrics.OutcomeIO
}
