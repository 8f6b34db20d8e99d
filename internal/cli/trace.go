package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
	"github.com/roach88/livelist/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Token    string
	Kind     string // optional - filter to one event kind
}

// TraceEvent is one journaled event with the list keys after applying it.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Kind    string   `json:"kind"`
	Key     string   `json:"key,omitempty"`
	PrevKey string   `json:"prev_key,omitempty"`
	Value   any      `json:"value,omitempty"`
	Error   string   `json:"error,omitempty"`
	Keys    []string `json:"keys"`
}

// TraceStats holds summary statistics for a subscription.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
	Loaded      bool           `json:"loaded"`
	Failed      bool           `json:"failed"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Token    string       `json:"token"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled event timeline of a subscription",
		Long: `Show every journaled event of one subscription in order, with the
list's keys after each event was applied.

Examples:
  livelist trace --db ./livelist.db --token sub-1
  livelist trace --db ./livelist.db --token sub-1 --kind moved
  livelist trace --db ./livelist.db --token sub-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "subscription token to trace (required)")
	_ = cmd.MarkFlagRequired("token")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "show only events of this kind (added, changed, moved, ...)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var kindFilter list.EventKind
	if opts.Kind != "" {
		k, err := list.ParseEventKind(opts.Kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --kind", err)
		}
		kindFilter = k
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ReadEvents(commandContext(cmd), opts.Token)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("token not found: %s", opts.Token))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	result := buildTrace(opts.Token, rows, kindFilter)

	if f.JSON() {
		return f.Response(result, nil)
	}

	w := f.Writer
	fmt.Fprintf(w, "Subscription %s\n\n", result.Token)
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "[%d] %-12s", ev.Seq, ev.Kind)
		if ev.Key != "" {
			fmt.Fprintf(w, " %s", ev.Key)
		}
		if ev.PrevKey != "" {
			fmt.Fprintf(w, " after %s", ev.PrevKey)
		}
		if ev.Error != "" {
			fmt.Fprintf(w, " %s", statusText(false, ev.Error))
		}
		fmt.Fprintf(w, "  -> %v\n", ev.Keys)
	}
	fmt.Fprintf(w, "\n%d events", result.Stats.TotalEvents)
	for _, kind := range traceKindOrder {
		if n := result.Stats.ByKind[kind]; n > 0 {
			fmt.Fprintf(w, ", %s=%d", kind, n)
		}
	}
	fmt.Fprintln(w)
	return nil
}

var traceKindOrder = []string{"reset", "added", "changed", "moved", "removed", "initial_sync", "error"}

// buildTrace folds rows through the reducer, recording the keys after each
// one. Filtering by kind hides events from the timeline but not from the
// fold.
func buildTrace(token string, rows []store.EventRow, kind list.EventKind) TraceResult {
	result := TraceResult{
		Token:    token,
		Timeline: []TraceEvent{},
		Stats:    TraceStats{ByKind: map[string]int{}},
	}

	state := list.Initial()
	for _, row := range rows {
		state = list.Reduce(state, row.Event())

		result.Stats.TotalEvents++
		result.Stats.ByKind[row.Kind.String()]++

		if kind != 0 && row.Kind != kind {
			continue
		}
		ev := TraceEvent{
			Seq:     row.Seq,
			Kind:    row.Kind.String(),
			Key:     row.Key,
			PrevKey: row.PrevKey,
			Error:   row.Error,
			Keys:    state.Collection.Keys(),
		}
		if row.HasSnapshot() {
			ev.Value = ir.ToGo(row.Value)
		}
		result.Timeline = append(result.Timeline, ev)
	}

	result.Stats.Loaded = !state.Loading
	result.Stats.Failed = state.Err != nil
	return result
}
