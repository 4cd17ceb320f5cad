package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/flowledger/internal/centroid"
	"github.com/roach88/flowledger/internal/flowrule"
	"github.com/roach88/flowledger/internal/ledger"
	"github.com/roach88/flowledger/internal/msd"
)

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Src         string `json:"src"`
	Dst         string `json:"dst"`
	Allowed     bool   `json:"allowed"`
	Whitelisted bool   `json:"whitelisted"`
	ViaCentroid bool   `json:"via_c"`
	Label       string `json:"label"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <src> <dst>",
		Short: "Evaluate the flow rules for one edge",
		Long: `Evaluate the flow rules for one edge between nodes.

Nodes are written S0..S7 or 0..7. An edge the rules deny can still be taken
by anchor when it goes via the centroid.

Examples:
  flowledger check S1 S2
  flowledger check 2 1 --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			src, err := parseNode(args[0])
			if err != nil {
				return usageError(out, err)
			}
			dst, err := parseNode(args[1])
			if err != nil {
				return usageError(out, err)
			}

			res := CheckResult{
				Src:         src.String(),
				Dst:         dst.String(),
				Allowed:     flowrule.TransitionAllowed(src, dst),
				Whitelisted: flowrule.Whitelisted(src, dst),
				ViaCentroid: flowrule.ViaCentroid(src, dst),
				Label:       flowrule.Label(src, dst),
			}
			return out.Emit(res, func() {
				verdict := "denied"
				if res.Allowed {
					verdict = "allowed"
				}
				fmt.Fprintf(out.Writer, "%s→%s %s (%s)\n", res.Src, res.Dst, verdict, res.Label)
				if res.ViaCentroid {
					fmt.Fprintln(out.Writer, "anchor routes this edge via the centroid")
				}
			})
		},
	}
}

// MSDResult is the JSON payload of the msd command.
type MSDResult struct {
	Value   int64  `json:"value"`
	Digits  []int8 `json:"digits"`
	Decoded int64  `json:"decoded"`
}

// NewMSDCommand creates the msd command.
func NewMSDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "msd <delta>",
		Short: "Encode an integer as MSD digits",
		Long: `Encode an integer as balanced radix-4 digits in [-2, 2],
least-significant first, and decode it back.

Examples:
  flowledger msd 3
  flowledger msd -- -6`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageError(out, fmt.Errorf("invalid delta %q: %w", args[0], err))
			}

			digits := msd.Encode(n)
			res := MSDResult{Value: n, Digits: digits, Decoded: digits.Int()}
			return out.Emit(res, func() {
				fmt.Fprintf(out.Writer, "%d → %v\n", res.Value, res.Digits)
			})
		},
	}
}

// TraverseOptions holds flags for the traverse command.
type TraverseOptions struct {
	*RootOptions
	Depth int
	Seed  int
}

// NewTraverseCommand creates the traverse command.
func NewTraverseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraverseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "traverse <start>",
		Short: "Walk the flow graph from a node",
		Long: `Walk the flow graph from a node, always taking the lowest-index legal
edge that leaves the current node.

The centroid digit is seeded from the wall clock unless --seed is given.

Examples:
  flowledger traverse S1
  flowledger traverse 0 --depth 10 --seed 0 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraverse(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Depth, "depth", "d", 5, fmt.Sprintf("number of steps (%d..%d)", flowrule.MinDepth, flowrule.MaxDepth))
	cmd.Flags().IntVar(&opts.Seed, "seed", -1, "initial centroid digit (0 or 1; -1 = wall clock)")

	return cmd
}

func runTraverse(opts *TraverseOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	start, err := parseNode(arg)
	if err != nil {
		return usageError(out, err)
	}

	var seed centroid.Digit
	switch opts.Seed {
	case -1:
		seed = centroid.Now(ledger.SystemClock{}.NowMillis())
	case 0, 1:
		seed = centroid.Digit(opts.Seed)
	default:
		return usageError(out, fmt.Errorf("invalid seed %d: want 0, 1 or -1", opts.Seed))
	}

	path, err := flowrule.Traverse(start, opts.Depth, seed)
	if err != nil {
		return usageError(out, err)
	}

	return out.Emit(path, func() {
		for _, s := range path.Steps {
			via := ""
			if s.ViaCentroid {
				via = " via centroid"
			}
			fmt.Fprintf(out.Writer, "%s→%s %s%s\n", s.Src, s.Dst, s.Label, via)
		}
		fmt.Fprintf(out.Writer, "centroid flips: %d, final digit: %d\n", path.CentroidFlips, path.FinalCentroid)
	})
}
