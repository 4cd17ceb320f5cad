package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flowledger/internal/ir"
	"github.com/roach88/flowledger/internal/registry"
)

// ExponentRow is one prime of an entity's exponent vector.
type ExponentRow struct {
	Prime    ir.Prime `json:"prime"`
	Home     string   `json:"home"`
	Exponent int32    `json:"exponent"`
	Stored   bool     `json:"stored"`
}

// NewExponentsCommand creates the exponents command.
func NewExponentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exponents <entity>",
		Short: "Show an entity's exponent for every prime",
		Long: `Show an entity's exponent for every prime of the universe.

Primes with nothing stored report their home node index, the same default
anchor uses.

Examples:
  flowledger exponents 1
  flowledger exponents 1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExponents(rootOpts, args[0], cmd)
		},
	}
}

func runExponents(opts *RootOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	entity, err := parseEntity(arg)
	if err != nil {
		return usageError(out, err)
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx := context.Background()
	stored, err := l.Factors(ctx, entity)
	if err != nil {
		return out.Fail("failed to read factors", err)
	}
	isStored := make(map[ir.Prime]bool, len(stored))
	for _, f := range stored {
		isStored[f.Prime] = true
	}

	rows := make([]ExponentRow, 0, len(ir.Primes))
	for _, p := range ir.Primes {
		exp, err := l.Exponent(ctx, entity, p)
		if err != nil {
			return out.Fail("failed to read exponent", err)
		}
		home, _ := registry.PrimeToNode(p)
		rows = append(rows, ExponentRow{Prime: p, Home: home.String(), Exponent: exp, Stored: isStored[p]})
	}

	return out.Emit(rows, func() {
		fmt.Fprintf(out.Writer, "entity %d\n", entity)
		for _, r := range rows {
			marker := ""
			if !r.Stored {
				marker = " (home)"
			}
			fmt.Fprintf(out.Writer, "  %2d @%s  %d%s\n", r.Prime, r.Home, r.Exponent, marker)
		}
	})
}

// NewPostingsCommand creates the postings command.
func NewPostingsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "postings <prime>",
		Short: "List every entity with a stored exponent for a prime",
		Long: `List every entity with a stored exponent for a prime, ordered by entity.

Examples:
  flowledger postings 3
  flowledger postings 19 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostings(rootOpts, args[0], cmd)
		},
	}
}

func runPostings(opts *RootOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	prime, err := parsePrime(arg)
	if err != nil {
		return usageError(out, err)
	}

	l, err := opts.openLedger(cmd)
	if err != nil {
		return err
	}
	defer l.Close()

	postings, err := l.Postings(context.Background(), prime)
	if err != nil {
		return out.Fail("failed to read postings", err)
	}

	return out.Emit(postings, func() {
		for _, p := range postings {
			fmt.Fprintf(out.Writer, "%d\t%d\n", p.Entity, p.Exponent)
		}
		out.Printf("%d entities hold prime %d\n", len(postings), uint32(prime))
	})
}
