package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/sagastore/internal/journal"
	"github.com/roach88/sagastore/internal/metrics/prom"
	"github.com/roach88/sagastore/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // journal path; empty disables the journal
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Result  *scenario.Result `json:"result"`
	Metrics MetricsSummary   `json:"metrics"`
}

// MetricsSummary is what the run's Prometheus registry collected.
type MetricsSummary struct {
	InFlight float64               `json:"inflight"`
	Sagas    map[string]SagaMetric `json:"sagas"`
}

// SagaMetric aggregates the runs of one saga.
type SagaMetric struct {
	Runs     map[string]int64 `json:"runs"` // by outcome
	TotalSec float64          `json:"total_seconds"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario file against a fresh store and print the trace,
final state, saga metrics, and assertion results.

With --db every dispatch and async saga outcome is also written to a
SQLite journal that "sagastore trace" can read back.

Exit codes:
  0 - All assertions held
  1 - A step or assertion failed
  2 - Command error (unreadable or invalid scenario, journal error)

Examples:
  sagastore run ./scenarios/load.yaml
  sagastore run ./scenarios/load.yaml --db ./journal.db
  sagastore run ./scenarios/load.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger(cmd.ErrOrStderr())

	sc, err := scenario.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	reg := prometheus.NewRegistry()
	runnerOpts := []scenario.Option{
		scenario.WithLogger(logger),
		scenario.WithMetrics(prom.NewSagaMetrics(reg)),
	}

	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, scenario.WithJournal(j))
		formatter.VerboseLog("journal: %s", opts.Database)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := scenario.NewRunner(runnerOpts...).Run(ctx, sc)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run aborted", err)
	}

	summary, err := summarizeMetrics(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to gather metrics", err)
	}

	out := RunOutput{Result: result, Metrics: summary}
	if formatter.JSON() {
		if result.Pass {
			return formatter.Success(out)
		}
		if err := formatter.Failure(ErrCodeFailed, fmt.Sprintf("scenario %s failed", sc.Name), out); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", sc.Name))
	}

	printRun(cmd.OutOrStdout(), sc, out)
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", sc.Name))
	}
	return nil
}

func printRun(w io.Writer, sc *scenario.Scenario, out RunOutput) {
	result := out.Result

	fmt.Fprintf(w, "Scenario: %s\n", sc.Name)
	if desc := strings.TrimSpace(sc.Description); desc != "" {
		fmt.Fprintf(w, "  %s\n", desc)
	}

	fmt.Fprintln(w, "\nTrace:")
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  %s\n", formatEvent(ev))
	}

	fmt.Fprintln(w, "\nSteps:")
	for i, s := range result.Steps {
		fmt.Fprintf(w, "  [%d] %s %s\n", i, s.Action, s.Elapsed.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "\nState: %s\n", formatCounts(result.State))

	fmt.Fprintln(w, "\nMetrics:")
	fmt.Fprintf(w, "  in flight: %g\n", out.Metrics.InFlight)
	for _, name := range sortedKeys(out.Metrics.Sagas) {
		m := out.Metrics.Sagas[name]
		fmt.Fprintf(w, "  %s: %s (%.3fs total)\n", name, formatCounts(m.Runs), m.TotalSec)
	}

	fmt.Fprintln(w)
	if result.Pass {
		fmt.Fprintln(w, "✓ PASS")
		return
	}
	fmt.Fprintln(w, "✗ FAIL")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
	}
}

func formatEvent(ev scenario.TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", ev.Seq, ev.Label())
	if ev.Outcome != "" {
		fmt.Fprintf(&b, " %s", ev.Outcome)
	}
	if ev.Saga != "" {
		fmt.Fprintf(&b, " (on %s)", ev.Action)
	}
	if ev.DispatchID != "" {
		fmt.Fprintf(&b, " %s", ev.DispatchID)
	}
	if len(ev.Payload) > 0 {
		if data, err := ev.Payload.MarshalJSON(); err == nil {
			fmt.Fprintf(&b, " %s", data)
		}
	}
	return b.String()
}

func formatCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return "(empty)"
	}
	parts := make([]string, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// summarizeMetrics reads the saga collectors registered by
// prom.NewSagaMetrics back out of reg.
func summarizeMetrics(reg prometheus.Gatherer) (MetricsSummary, error) {
	summary := MetricsSummary{Sagas: map[string]SagaMetric{}}

	mfs, err := reg.Gather()
	if err != nil {
		return summary, err
	}

	saga := func(name string) SagaMetric {
		m, ok := summary.Sagas[name]
		if !ok {
			m = SagaMetric{Runs: map[string]int64{}}
		}
		return m
	}

	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}

			switch mf.GetName() {
			case "sagastore_inflight_operations":
				summary.InFlight = m.GetGauge().GetValue()
			case "sagastore_saga_runs_total":
				s := saga(labels["saga"])
				s.Runs[labels["outcome"]] += int64(m.GetCounter().GetValue())
				summary.Sagas[labels["saga"]] = s
			case "sagastore_saga_run_duration_seconds":
				s := saga(labels["saga"])
				s.TotalSec += m.GetHistogram().GetSampleSum()
				summary.Sagas[labels["saga"]] = s
			}
		}
	}
	return summary, nil
}
