package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/harness"
	"github.com/roach88/livelist/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Database string

	// Tokens overrides the subscription token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens binding.TokenGenerator
}

// RecordOutput is the JSON payload of the record command.
type RecordOutput struct {
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Database string   `json:"database"`
	Tokens   []string `json:"tokens"`
	Events   int      `json:"events"`
	Errors   []string `json:"errors,omitempty"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	return newRecordCommand(&RecordOptions{RootOptions: rootOpts})
}

func newRecordCommand(opts *RecordOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <scenario.yaml>",
		Short: "Run a scenario and journal every applied event",
		Long: `Run a scenario with the SQLite journal attached.

Every event the binding applies is written to the database under its
subscription token, so the published lists can be rebuilt later with
"livelist replay".

Example:
  livelist record ./scenarios/chat_window.yaml --db ./livelist.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRecord(opts *RecordOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := f.Logger()

	scenario, err := loadScenario(path)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	tokens := opts.Tokens
	if tokens == nil {
		tokens = binding.UUIDv7Generator{}
	}
	tracked := &trackingGenerator{next: tokens}

	ctx := commandContext(cmd)
	rec := store.NewRecorder(st, logger)
	recCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recDone := make(chan error, 1)
	go func() {
		recDone <- rec.Run(recCtx)
	}()

	result, runErr := harness.RunWithOptions(ctx, scenario, harness.Options{
		Tokens:   tracked,
		Recorder: rec,
		Logger:   logger,
	})
	rec.Close()
	if err := <-recDone; err != nil {
		return WrapExitError(ExitFailure, "journal write failed", err)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "scenario execution failed", runErr)
	}

	events := 0
	for _, token := range tracked.tokens {
		rows, err := st.ReadEvents(ctx, token)
		if err != nil {
			// A subscription that was replaced before its reset applied
			// has no rows.
			continue
		}
		events += len(rows)
	}

	out := RecordOutput{
		Name:     scenario.Name,
		Pass:     result.Pass,
		Database: opts.Database,
		Tokens:   tracked.tokens,
		Events:   events,
		Errors:   result.Errors,
	}

	if f.JSON() {
		var failure *CLIError
		if !result.Pass {
			failure = &CLIError{Code: ErrCodeFailed, Message: "scenario failed"}
		}
		if err := f.Response(out, failure); err != nil {
			return err
		}
	} else {
		w := f.Writer
		fmt.Fprintf(w, "%s %s\n", passText(out.Pass), out.Name)
		fmt.Fprintf(w, "  recorded %d events under %d token(s) in %s\n", out.Events, len(out.Tokens), out.Database)
		for _, token := range out.Tokens {
			fmt.Fprintf(w, "  %s\n", token)
		}
		printErrors(w, out.Errors)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}

// trackingGenerator remembers every token it hands out.
type trackingGenerator struct {
	next   binding.TokenGenerator
	tokens []string
}

// Generate is called under the binding's lock, so no locking is needed here.
func (g *trackingGenerator) Generate() string {
	t := g.next.Generate()
	g.tokens = append(g.tokens, t)
	return t
}
