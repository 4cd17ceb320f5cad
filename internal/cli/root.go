package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowledger/internal/config"
	"github.com/roach88/flowledger/internal/ledger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Base       string

	// Config is loaded once in PersistentPreRunE.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the flowledger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flowledger",
		Short: "flowledger - prime exponent ledger",
		Long: `A ledger of per-entity prime exponents.

Every move is checked against the flow rules between the eight home nodes,
certified with an MSD digit sequence, appended to the event log, and
committed atomically to the factors and postings partitions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if opts.Base != "" {
				cfg.Base = opts.Base
			}
			opts.Config = cfg
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.Base, "base", "", "ledger base directory (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewAnchorCommand(opts))
	cmd.AddCommand(NewExponentsCommand(opts))
	cmd.AddCommand(NewPostingsCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewMSDCommand(opts))
	cmd.AddCommand(NewTraverseCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return NewOutputFormatter(o.Format, cmd.OutOrStdout(), o.Verbose)
}

// logger builds the diagnostic logger: text on stderr, debug under --verbose.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level, err := config.ParseLevel(o.Config.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	w := cmd.ErrOrStderr()
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLedger opens the configured ledger.
func (o *RootOptions) openLedger(cmd *cobra.Command, extra ...ledger.Option) (*ledger.Ledger, error) {
	logger := o.logger(cmd)
	lcfg := o.Config.Ledger()
	if o.Verbose {
		lcfg.Store.Logger = logger
	}

	opts := append([]ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithCentroidBypass(o.Config.CentroidBypass),
	}, extra...)

	l, err := ledger.Open(lcfg, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	logger.Debug("ledger opened", "base", lcfg.Base, "backend", lcfg.Store.Backend)
	return l, nil
}
