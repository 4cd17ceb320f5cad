package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowledger/internal/ir"
	"github.com/roach88/flowledger/internal/ledger"
	"github.com/roach88/flowledger/internal/store"
)

// Scenario defines a ledger scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ClockMillis is the fixed wall clock every batch reads. Its parity
	// seeds the centroid digit.
	ClockMillis uint64 `yaml:"clock_millis"`

	// Backend selects the in-memory store backend. Default: badger.
	Backend string `yaml:"backend,omitempty"`

	// CentroidBypass overrides the ledger default (true) when set.
	CentroidBypass *bool `yaml:"centroid_bypass,omitempty"`

	// Batches run in order; a failed batch does not stop the scenario.
	Batches []BatchStep `yaml:"batches"`

	// Assertions validate the final store and log.
	Assertions []Assertion `yaml:"assertions"`
}

// BatchStep is one AnchorBatch call.
type BatchStep struct {
	Entity   uint64       `yaml:"entity"`
	Commands []ir.Command `yaml:"commands"`

	// Expect, if set, is checked against the call's outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one batch.
type ExpectClause struct {
	// Error is the expected LedgerError code; empty expects success.
	Error ledger.ErrorCode `yaml:"error,omitempty"`

	// Events is the expected number of returned events. Ignored when nil.
	Events *int `yaml:"events,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	Type   string   `yaml:"type"`
	Entity uint64   `yaml:"entity,omitempty"`
	Prime  ir.Prime `yaml:"prime,omitempty"`

	// Value is the expected exponent (exponent, posting).
	Value *int32 `yaml:"value,omitempty"`

	// Count is the expected count (event_count, centroid_flips).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertExponent      = "exponent"
	AssertPosting       = "posting"
	AssertNoEntry       = "no_entry"
	AssertEventCount    = "event_count"
	AssertCentroidFlips = "centroid_flips"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", store.BackendBadger, store.BackendSQLite:
	default:
		return fmt.Errorf("backend %q: must be %q or %q", s.Backend, store.BackendBadger, store.BackendSQLite)
	}
	if len(s.Batches) == 0 {
		return fmt.Errorf("batches list is required and must be non-empty")
	}

	for i, b := range s.Batches {
		if len(b.Commands) == 0 {
			return fmt.Errorf("batches[%d]: commands list is required and must be non-empty", i)
		}
		if b.Expect != nil {
			switch b.Expect.Error {
			case "", ledger.ErrCodeUnknownPrime, ledger.ErrCodeInvalidNode,
				ledger.ErrCodeForbiddenTransition, ledger.ErrCodeIO:
			default:
				return fmt.Errorf("batches[%d]: unknown error code %q", i, b.Expect.Error)
			}
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertExponent, AssertPosting:
			if a.Prime == 0 {
				return fmt.Errorf("assertions[%d]: %s requires prime", i, a.Type)
			}
			if a.Value == nil {
				return fmt.Errorf("assertions[%d]: %s requires value", i, a.Type)
			}
		case AssertNoEntry:
			if a.Prime == 0 {
				return fmt.Errorf("assertions[%d]: %s requires prime", i, a.Type)
			}
		case AssertEventCount, AssertCentroidFlips:
			if a.Count == nil {
				return fmt.Errorf("assertions[%d]: %s requires count", i, a.Type)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}
