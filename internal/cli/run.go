package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/shadow/internal/harness"
	"github.com/roach88/shadow/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Metrics bool // print the Prometheus exposition after the run
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Scenario string          `json:"scenario"`
	Result   *harness.Result `json:"result"`
	Metrics  string          `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its deliveries",
		Long: `Run a single scenario and print every batch each observer received.

Expectations in the scenario are checked; a failed expectation makes the
command exit with code 1.

Example:
  shadow run ./scenarios/nested_update.yaml
  shadow run ./scenarios/splice.yaml --format json --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print engine metrics in Prometheus text format")

	return cmd
}

func runScenario(opts *RunOptions, file string, out, errOut io.Writer) error {
	formatter := newFormatter(opts.RootOptions, out, errOut)

	scenario, err := loadScenarioFile(formatter, file)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Running %s (%d steps)", scenario.Name, len(scenario.Steps))

	runOpts := []harness.Option{harness.WithLogger(slog.Default())}
	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithMetrics(metrics.NewCollector(reg)))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario execution failed", err)
	}

	var exposition string
	if reg != nil {
		exposition, err = gatherText(reg)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to gather metrics", err)
		}
	}

	if formatter.IsJSON() {
		var cliErr *CLIError
		if !result.Pass {
			cliErr = &CLIError{Code: ErrCodeScenarioFailed, Message: fmt.Sprintf("%d expectation(s) failed", len(result.Errors))}
		}
		if err := formatter.Report(RunOutput{Scenario: scenario.Name, Result: result, Metrics: exposition}, cliErr); err != nil {
			return err
		}
	} else {
		writeRunText(out, scenario.Name, result)
		if exposition != "" {
			fmt.Fprintln(out)
			fmt.Fprint(out, exposition)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// loadScenarioFile loads a scenario, reporting failures through formatter.
// A missing file is a command error; an invalid one is a failure.
func loadScenarioFile(formatter *OutputFormatter, file string) (*harness.Scenario, error) {
	if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
		msg := fmt.Sprintf("scenario file not found: %s", file)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidScenario, err.Error(), map[string]string{"file": file})
		return nil, WrapExitError(ExitFailure, "failed to load scenario", err)
	}
	return scenario, nil
}

// writeRunText prints deliveries grouped by flush.
func writeRunText(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n", name)
	for _, d := range result.Deliveries {
		fmt.Fprintf(w, "[flush %d] %s\n", d.Flush, d.Observer)
		for _, r := range d.Records {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}
	fmt.Fprintf(w, "Flushes: %d, observer errors: %d\n", result.Flushes, result.ObserverErrors)

	if result.Pass {
		fmt.Fprintln(w, "✓ Expectations met")
		return
	}
	fmt.Fprintln(w, "✗ Expectations failed")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// gatherText renders every metric in reg in the Prometheus text format.
func gatherText(reg prometheus.Gatherer) (string, error) {
	families, err := reg.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
