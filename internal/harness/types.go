package harness

import (
	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/ir"
)

// TraceEntry is one published snapshot, reduced to what golden traces
// compare.
type TraceEntry struct {
	Seq     int64    `json:"seq"`
	Token   string   `json:"token"`
	Loading bool     `json:"loading"`
	Error   string   `json:"error,omitempty"`
	Keys    []string `json:"keys"`
}

// State is the published state assertions are evaluated against.
type State struct {
	Seq     int64    `json:"seq"`
	Token   string   `json:"token"`
	Loading bool     `json:"loading"`
	Error   string   `json:"error,omitempty"`
	Keys    []string `json:"keys"`

	// Items are the published records, in order.
	Items []ir.Snapshot `json:"-"`

	// Published is how many snapshots had been published.
	Published int `json:"published"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every published snapshot in order.
	Trace []TraceEntry `json:"trace"`

	// Final is the state after the last step.
	Final State `json:"final"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a published snapshot to the trace.
func (r *Result) AddTrace(s binding.Snapshot) {
	r.Trace = append(r.Trace, TraceEntry{
		Seq:     s.Seq,
		Token:   s.Token,
		Loading: s.Loading,
		Error:   errorString(s.Err),
		Keys:    s.Keys(),
	})
}

// stateOf captures s together with the number of snapshots published so far.
func stateOf(s binding.Snapshot, published int) State {
	return State{
		Seq:       s.Seq,
		Token:     s.Token,
		Loading:   s.Loading,
		Error:     errorString(s.Err),
		Keys:      s.Keys(),
		Items:     s.List,
		Published: published,
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
