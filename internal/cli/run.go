package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/harness"
)

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Name      string       `json:"name"`
	Pass      bool         `json:"pass"`
	Token     string       `json:"token"`
	Loading   bool         `json:"loading"`
	Error     string       `json:"error,omitempty"`
	Records   []RecordJSON `json:"records"`
	Published int          `json:"published"`
	Errors    []string     `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print the final list",
		Long: `Run a single scenario against a fresh in-memory feed.

The scenario's query is bound, every step is applied, and the final
published list is printed together with the assertion outcome.

Example:
  livelist run ./scenarios/chat_window.yaml
  livelist run ./scenarios/chat_window.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := loadScenario(path)
	if err != nil {
		return err
	}

	f.VerboseLog("running scenario %s (%d steps)", scenario.Name, len(scenario.Steps))
	result, err := harness.RunWithOptions(commandContext(cmd), scenario, harness.Options{Logger: f.Logger()})
	if err != nil {
		return WrapExitError(ExitFailure, "scenario execution failed", err)
	}

	return reportRun(f, scenario, result)
}

// loadScenario loads a scenario file, mapping failures to command errors.
func loadScenario(path string) (*harness.Scenario, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("scenario file not found: %s", path))
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	return scenario, nil
}

func reportRun(f *OutputFormatter, scenario *harness.Scenario, result *harness.Result) error {
	final := result.Final

	if f.JSON() {
		out := RunOutput{
			Name:      scenario.Name,
			Pass:      result.Pass,
			Token:     final.Token,
			Loading:   final.Loading,
			Error:     final.Error,
			Records:   recordsJSON(final.Items),
			Published: final.Published,
			Errors:    result.Errors,
		}
		var failure *CLIError
		if !result.Pass {
			failure = &CLIError{Code: ErrCodeFailed, Message: "scenario failed"}
		}
		if err := f.Response(out, failure); err != nil {
			return err
		}
	} else {
		w := f.Writer
		fmt.Fprintf(w, "%s %s\n", passText(result.Pass), scenario.Name)
		fmt.Fprintf(w, "  token: %s  status: %s  published: %d\n",
			final.Token, statusText(final.Loading, final.Error), final.Published)
		printRecords(w, final.Items)
		printErrors(w, result.Errors)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}

// printErrors writes assertion failures indented under a scenario line.
func printErrors(w io.Writer, errs []string) {
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
