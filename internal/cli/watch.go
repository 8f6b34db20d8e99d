package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/feed/memfeed"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/view"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Path         string
	OrderByChild string
	LimitFirst   int
	LimitLast    int
	IDField      string
	Timeout      time.Duration
}

// WatchOutput is the JSON payload of the watch command.
type WatchOutput struct {
	Query   string `json:"query"`
	Token   string `json:"token"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Items   []any  `json:"items"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <fixture.cue>",
		Short: "Bind a query over CUE seed data and print the derived view",
		Long: `Load a CUE fixture into an in-memory feed, bind a query over it and
print the resulting list as data records.

The struct at --path holds the children. With --id-field, each object
record gets its key injected under that field.

Examples:
  livelist watch ./fixtures/chat.cue --path rooms/lobby --order-by-child ts
  livelist watch ./fixtures/chat.cue --path rooms/lobby --limit-last 2 --id-field id`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "feed path whose children are listed (required)")
	_ = cmd.MarkFlagRequired("path")
	cmd.Flags().StringVar(&opts.OrderByChild, "order-by-child", "", "order children by this field instead of by key")
	cmd.Flags().IntVar(&opts.LimitFirst, "limit-first", 0, "keep only the first n children")
	cmd.Flags().IntVar(&opts.LimitLast, "limit-last", 0, "keep only the last n children")
	cmd.Flags().StringVar(&opts.IDField, "id-field", "", "inject each record's key under this field")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "how long to wait for the list to settle")
	cmd.MarkFlagsMutuallyExclusive("limit-first", "limit-last")

	return cmd
}

func runWatch(opts *WatchOptions, fixturePath string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.LimitFirst < 0 || opts.LimitLast < 0 {
		return NewExitError(ExitCommandError, "limits must be non-negative")
	}

	fixture, err := LoadFixture(fixturePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
	}
	children, err := fixture.Children(opts.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid fixture data", err)
	}
	f.VerboseLog("loaded %d children at %s from %s", len(children), opts.Path, fixturePath)

	db := memfeed.New()
	if err := db.Update(opts.Path, children); err != nil {
		return WrapExitError(ExitCommandError, "failed to seed feed", err)
	}

	query := db.Ref(opts.Path)
	if opts.OrderByChild != "" {
		query = query.OrderByChild(opts.OrderByChild)
	}
	switch {
	case opts.LimitFirst > 0:
		query = query.LimitToFirst(opts.LimitFirst)
	case opts.LimitLast > 0:
		query = query.LimitToLast(opts.LimitLast)
	}

	snap, err := bindOnce(commandContext(cmd), query, opts.Timeout, f)
	if err != nil {
		return WrapExitError(ExitFailure, "binding did not settle", err)
	}

	result := view.Map(snap, view.ToData(opts.IDField))
	return reportWatch(f, query.String(), snap.Token, result)
}

// bindOnce binds q on a fresh binding, waits until everything the feed has
// delivered is published and returns the resulting snapshot.
func bindOnce(ctx context.Context, q *memfeed.Query, timeout time.Duration, f *OutputFormatter) (binding.Snapshot, error) {
	b := binding.New(binding.WithLogger(f.Logger()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- b.Run(runCtx)
	}()

	b.Bind(q)

	flushCtx, flushCancel := context.WithTimeout(ctx, timeout)
	defer flushCancel()
	flushErr := b.Flush(flushCtx)
	snap := b.Snapshot()

	b.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return snap, err
	}
	return snap, flushErr
}

func reportWatch(f *OutputFormatter, query, token string, result view.Result[ir.Value]) error {
	errMsg := ""
	if result.Err != nil {
		errMsg = result.Err.Error()
	}

	if f.JSON() {
		items := make([]any, len(result.Items))
		for i, v := range result.Items {
			items[i] = ir.ToGo(v)
		}
		out := WatchOutput{
			Query:   query,
			Token:   token,
			Loading: result.Loading,
			Error:   errMsg,
			Items:   items,
		}
		var failure *CLIError
		if result.Err != nil {
			failure = &CLIError{Code: ErrCodeFailed, Message: errMsg}
		}
		if err := f.Response(out, failure); err != nil {
			return err
		}
	} else {
		w := f.Writer
		fmt.Fprintf(w, "%s  status: %s  records: %d\n", query, statusText(result.Loading, errMsg), len(result.Items))
		for _, v := range result.Items {
			fmt.Fprintf(w, "  %s\n", canonicalOrError(v))
		}
	}

	if result.Err != nil {
		return NewExitError(ExitFailure, "query failed")
	}
	return nil
}
