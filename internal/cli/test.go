package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated", "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run all scenarios in a directory",
		Long: `Run every *.yaml scenario under a directory.

Each scenario's assertions are evaluated and, when a golden file exists
at <dir>/golden/<name>.golden, its published trace is compared with it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  livelist test ./scenarios
  livelist test ./scenarios --filter "chat_*"
  livelist test ./scenarios --update
  livelist test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	info, err := os.Stat(scenariosDir)
	if errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot access scenarios directory", err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	if len(scenarioFiles) == 0 && !f.JSON() {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	for _, scenarioFile := range scenarioFiles {
		f.VerboseLog("scenario %s", scenarioFile)
		scenResult := runOneScenario(commandContext(cmd), scenarioFile, opts, f)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if !f.JSON() {
			printScenarioResult(f.Writer, scenResult)
		}
	}

	if f.JSON() {
		var failure *CLIError
		if result.Failed > 0 {
			failure = &CLIError{Code: ErrCodeFailed, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
		}
		if err := f.Response(result, failure); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer)
		fmt.Fprintf(f.Writer, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	if !f.JSON() {
		fmt.Fprintf(f.Writer, "%s All scenarios passed\n", passText(true))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files under dir, skipping
// golden directories. Results are in lexical order.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == harness.GoldenDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runOneScenario executes a scenario file and checks it against its golden
// trace, if any.
func runOneScenario(ctx context.Context, scenarioFile string, opts *TestOptions, f *OutputFormatter) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.RunWithOptions(ctx, scenario, harness.Options{Logger: f.Logger()})
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	current, err := harness.GoldenBytes(scenario.Name, result)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("failed to render trace: %v", err)},
		}
	}

	goldenPath := harness.GoldenPath(scenarioFile)
	out := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}

	if opts.Update {
		if err := writeGolden(goldenPath, current); err != nil {
			out.Pass = false
			out.Errors = append(out.Errors, err.Error())
			return out
		}
		out.Golden = "updated"
		return out
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		out.Golden = "missing"
	case err != nil:
		out.Pass = false
		out.Errors = append(out.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case !bytes.Equal(bytes.TrimSpace(golden), current):
		out.Pass = false
		out.Golden = "mismatch"
		out.Errors = append(out.Errors,
			"trace does not match golden file (run with --update to regenerate)",
			"  diff: "+harness.InlineDiff(string(bytes.TrimSpace(golden)), string(current)))
	default:
		out.Golden = "match"
	}
	return out
}

// writeGolden writes data to path, creating the golden directory.
func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScenarioResult(w io.Writer, r ScenarioResult) {
	suffix := ""
	if r.Golden == "updated" {
		suffix = " (golden updated)"
	}
	fmt.Fprintf(w, "%s %s%s\n", passText(r.Pass), r.Name, suffix)
	printErrors(w, r.Errors)
}
