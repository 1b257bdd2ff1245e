package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sagastore/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Dispatch string // optional - limit to one dispatch ID
	Saga     string // optional - limit runs to one saga
}

// DispatchTrace is a dispatch with the async runs it started.
type DispatchTrace struct {
	journal.DispatchRecord
	Runs []journal.RunRecord `json:"runs"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Dispatches []DispatchTrace `json:"dispatches"`
	Stats      journal.Stats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read a run journal",
		Long: `Read back a journal written by "sagastore run --db".

Lists dispatches in seq order, each followed by the asynchronous saga
runs it started and their outcomes, then summary statistics.

Examples:
  sagastore trace --db ./journal.db
  sagastore trace --db ./journal.db --dispatch d-1
  sagastore trace --db ./journal.db --saga fetch --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Dispatch, "dispatch", "", "show only this dispatch ID")
	cmd.Flags().StringVar(&opts.Saga, "saga", "", "show only runs of this saga")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open would create an empty journal; a missing file is a user error.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	result, err := readTrace(ctx, j, opts)
	if errors.Is(err, journal.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "dispatch not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	printTrace(cmd.OutOrStdout(), result)
	return nil
}

func readTrace(ctx context.Context, j *journal.Journal, opts *TraceOptions) (TraceResult, error) {
	var dispatches []journal.DispatchRecord
	if opts.Dispatch != "" {
		d, err := j.ReadDispatch(ctx, opts.Dispatch)
		if err != nil {
			return TraceResult{}, err
		}
		dispatches = []journal.DispatchRecord{d}
	} else {
		all, err := j.ReadDispatches(ctx)
		if err != nil {
			return TraceResult{}, err
		}
		dispatches = all
	}

	runs, err := j.ReadRuns(ctx, opts.Dispatch)
	if err != nil {
		return TraceResult{}, err
	}
	byDispatch := make(map[string][]journal.RunRecord)
	for _, r := range runs {
		if opts.Saga != "" && r.Saga != opts.Saga {
			continue
		}
		byDispatch[r.DispatchID] = append(byDispatch[r.DispatchID], r)
	}

	stats, err := j.Stats(ctx)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{Dispatches: make([]DispatchTrace, 0, len(dispatches)), Stats: stats}
	for _, d := range dispatches {
		runs := byDispatch[d.ID]
		if runs == nil {
			runs = []journal.RunRecord{}
		}
		result.Dispatches = append(result.Dispatches, DispatchTrace{DispatchRecord: d, Runs: runs})
	}
	return result, nil
}

func printTrace(w io.Writer, result TraceResult) {
	if len(result.Dispatches) == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return
	}

	for _, d := range result.Dispatches {
		fmt.Fprintf(w, "[%d] %s %s %s\n", d.Seq, d.ID, d.ActionType, d.Payload)
		for _, r := range d.Runs {
			fmt.Fprintf(w, "      %s -> %s", r.Saga, r.Outcome)
			if r.Error != "" {
				fmt.Fprintf(w, " (%s)", r.Error)
			}
			fmt.Fprintf(w, " [journal %d..%d]\n", r.StartedSeq, r.FinishedSeq)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Dispatches: %d\n", result.Stats.Dispatches)
	fmt.Fprintf(w, "Saga runs:  %d (%s)\n", result.Stats.Runs, formatCounts(result.Stats.Outcomes))
}
