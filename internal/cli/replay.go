package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Token    string // optional - specific subscription only
}

// ReplayTokenResult is the list rebuilt for one subscription token.
type ReplayTokenResult struct {
	Token   string       `json:"token"`
	Events  int          `json:"events"`
	LastSeq int64        `json:"last_seq"`
	Loading bool         `json:"loading"`
	Error   string       `json:"error,omitempty"`
	Records []RecordJSON `json:"records"`
}

// ReplayOutput holds the overall replay result.
type ReplayOutput struct {
	Subscriptions []ReplayTokenResult `json:"subscriptions"`
	Total         int                 `json:"total"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild lists from the event journal",
		Long: `Rebuild each journaled subscription's list by folding its events
through the reducer, verifying every stored digest on the way.

Exit codes:
  0 - All subscriptions replayed
  1 - Replay failed (digest mismatch, corrupt row)
  2 - Command error (database or token not found, etc.)

Examples:
  livelist replay --db ./livelist.db
  livelist replay --db ./livelist.db --token 0192f3c4-...
  livelist replay --db ./livelist.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "replay one subscription token only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var results []store.ReplayResult
	if opts.Token != "" {
		res, err := st.Replay(ctx, opts.Token)
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("token not found: %s", opts.Token))
		}
		if err != nil {
			return WrapExitError(ExitFailure, "replay failed", err)
		}
		results = append(results, res)
	} else {
		results, err = st.ReplayAll(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "replay failed", err)
		}
	}

	out := ReplayOutput{
		Subscriptions: make([]ReplayTokenResult, 0, len(results)),
		Total:         len(results),
	}
	for _, res := range results {
		errMsg := ""
		if res.State.Err != nil {
			errMsg = res.State.Err.Error()
		}
		out.Subscriptions = append(out.Subscriptions, ReplayTokenResult{
			Token:   res.Token,
			Events:  res.Events,
			LastSeq: res.LastSeq,
			Loading: res.State.Loading,
			Error:   errMsg,
			Records: recordsJSON(res.State.Collection.Items()),
		})
	}

	if f.JSON() {
		return f.Response(out, nil)
	}

	w := f.Writer
	if out.Total == 0 {
		fmt.Fprintln(w, "No subscriptions recorded.")
		return nil
	}
	for i, sub := range out.Subscriptions {
		fmt.Fprintf(w, "%s  events: %d  last_seq: %d  status: %s\n",
			sub.Token, sub.Events, sub.LastSeq, statusText(sub.Loading, sub.Error))
		printRecords(w, results[i].State.Collection.Items())
	}
	fmt.Fprintf(w, "\nReplayed %d subscription(s)\n", out.Total)
	return nil
}

// openExistingStore opens a journal that must already exist; store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
