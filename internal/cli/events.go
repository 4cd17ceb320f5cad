package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/flowledger/internal/eventlog"
	"github.com/roach88/flowledger/internal/ir"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Entity uint64
	Prime  uint32
	Limit  int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Long: `Print events from the append-only event log.

The log includes events of batches that later failed; it is a record of
accepted moves, not of committed state. The store is not opened.

Examples:
  flowledger events
  flowledger events --entity 1 --prime 3
  flowledger events --limit 10 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Entity, "entity", 0, "only events of this entity")
	cmd.Flags().Uint32Var(&opts.Prime, "prime", 0, "only events of this prime")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "print at most the last N matching events (0 = all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	path := filepath.Join(opts.Config.Base, eventlog.FileName)

	all, err := eventlog.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		all = nil
	} else if err != nil {
		return out.Fail("failed to read event log", err)
	}

	entityFilter := cmd.Flags().Changed("entity")
	events := []ir.LedgerEvent{}
	for _, ev := range all {
		if entityFilter && ev.EntityID != opts.Entity {
			continue
		}
		if opts.Prime != 0 && ev.Prime != opts.Prime {
			continue
		}
		events = append(events, ev)
	}
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[len(events)-opts.Limit:]
	}

	return out.Emit(events, func() {
		for _, ev := range events {
			fmt.Fprintf(out.Writer, "%d entity=%d prime=%d msd=%v via_c=%t centroid=%d\n",
				ev.Timestamp, ev.EntityID, ev.Prime, ev.MSDDigits, ev.ViaCentroid, ev.CentroidDigit)
		}
		out.Printf("%d events\n", len(events))
	})
}
