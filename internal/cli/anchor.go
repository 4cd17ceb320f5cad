package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/flowledger/internal/ir"
	"github.com/roach88/flowledger/internal/ledger"
	"github.com/roach88/flowledger/internal/metrics"
)

// AnchorOptions holds flags for the anchor command.
type AnchorOptions struct {
	*RootOptions
	File    string
	Metrics bool
	Strict  bool

	// Clock overrides the batch clock (for testing).
	Clock ledger.Clock
}

// AnchorResult is the JSON payload of the anchor command.
type AnchorResult struct {
	Entity   uint64           `json:"entity"`
	Commands int              `json:"commands"`
	Events   []ir.LedgerEvent `json:"events"`
}

// NewAnchorCommand creates the anchor command.
func NewAnchorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnchorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "anchor <entity> [prime=target ...]",
		Short: "Anchor a batch of moves for one entity",
		Long: `Anchor a batch of moves for one entity.

Each command moves the entity's exponent for a prime to a target node index.
Commands run in order; the first rejected command fails the whole batch and
nothing is committed, though events already appended stay in the log.

Commands come from the arguments, from --file, or both (file first).

Exit codes:
  0 - Batch committed
  1 - Batch rejected (unknown prime, invalid node, forbidden transition)
  2 - Command error (bad arguments, store or log failure)

Examples:
  flowledger anchor 1 3=2
  flowledger anchor 1 2=3 5=1 --format json
  flowledger anchor 42 --file batch.yaml --metrics
  flowledger anchor 1 5=1 --strict`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnchor(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML batch file")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "dump batch metrics to stderr")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "disable the centroid bypass")

	return cmd
}

func runAnchor(opts *AnchorOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	entity, err := parseEntity(args[0])
	if err != nil {
		return usageError(out, err)
	}

	var cmds []ir.Command
	if opts.File != "" {
		cmds, err = loadBatchFile(opts.File)
		if err != nil {
			return usageError(out, err)
		}
	}
	for _, arg := range args[1:] {
		c, err := parseCommand(arg)
		if err != nil {
			return usageError(out, err)
		}
		cmds = append(cmds, c)
	}
	if len(cmds) == 0 {
		return usageError(out, fmt.Errorf("no commands: pass prime=target arguments or --file"))
	}

	var extra []ledger.Option
	reg := prometheus.NewRegistry()
	if opts.Metrics {
		extra = append(extra, ledger.WithMetrics(metrics.New(reg)))
	}
	if opts.Strict {
		extra = append(extra, ledger.WithCentroidBypass(false))
	}
	if opts.Clock != nil {
		extra = append(extra, ledger.WithClock(opts.Clock))
	}

	l, err := opts.openLedger(cmd, extra...)
	if err != nil {
		return err
	}
	defer l.Close()

	events, err := l.AnchorBatch(context.Background(), entity, cmds)
	if opts.Metrics {
		if werr := metrics.WriteText(cmd.ErrOrStderr(), reg); werr != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", werr)
		}
	}
	if err != nil {
		return out.Fail("anchor batch failed", err)
	}

	if events == nil {
		events = []ir.LedgerEvent{}
	}
	result := AnchorResult{Entity: entity, Commands: len(cmds), Events: events}
	return out.Emit(result, func() {
		for _, ev := range events {
			fmt.Fprintf(out.Writer, "prime %-2d msd %v via_c=%t centroid=%d\n",
				ev.Prime, ev.MSDDigits, ev.ViaCentroid, ev.CentroidDigit)
		}
		out.Printf("%d events anchored from %d commands\n", len(events), len(cmds))
	})
}

// usageError reports a bad argument and returns an ExitCommandError.
func usageError(out *OutputFormatter, err error) error {
	_ = out.Error(CodeUsage, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid arguments", err)
}
