package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"github.com/roach88/livelist/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failure, failed binding, replay mismatch
	ExitCommandError = 2 // Command error (invalid paths, unreadable input, etc.)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path, database or token not found
	ErrCodeLoadFailed   = "E003" // Scenario or fixture could not be loaded
	ErrCodeInvalidValue = "E004" // Fixture value not representable (e.g. float)
	ErrCodeWriteFailed  = "E005" // Golden or journal write error
	ErrCodeFailed       = "E010" // Scenario or binding failure
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure for errors that are not an
// ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// newFormatter builds a formatter writing to w, with diagnostics on errW.
func newFormatter(opts *RootOptions, w, errW io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    w,
		ErrWriter: errW,
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", color.RedString("Error"), code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Response writes a response whose status depends on failure. Data is
// included either way.
func (f *OutputFormatter) Response(data any, failure *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if failure != nil {
		resp.Status = "error"
		resp.Error = failure
	}
	return f.encode(resp)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting
// JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Logger returns a text slog logger on the diagnostic writer: debug level
// when verbose, warnings otherwise.
func (f *OutputFormatter) Logger() *slog.Logger {
	level := slog.LevelWarn
	if f.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(f.GetErrWriter(), &slog.HandlerOptions{Level: level}))
}

// statusText renders a list status: loading, error or ok.
func statusText(loading bool, errMsg string) string {
	switch {
	case errMsg != "":
		return color.RedString("error: %s", errMsg)
	case loading:
		return color.YellowString("loading")
	default:
		return color.GreenString("ok")
	}
}

// passText renders a scenario outcome mark.
func passText(pass bool) string {
	if pass {
		return color.GreenString("✓")
	}
	return color.RedString("✗")
}

// printRecords writes one line per record: key, then canonical value.
func printRecords(w io.Writer, items []ir.Snapshot) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "  %s %s\n", color.CyanString(item.Key), canonicalOrError(item.Value))
	}
}

// canonicalOrError renders v as canonical JSON, or the encoding error.
func canonicalOrError(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// recordsJSON converts records to JSON-friendly key/value pairs.
func recordsJSON(items []ir.Snapshot) []RecordJSON {
	out := make([]RecordJSON, len(items))
	for i, item := range items {
		out[i] = RecordJSON{Key: item.Key, Value: ir.ToGo(item.Value)}
	}
	return out
}

// RecordJSON is one list record in JSON output.
type RecordJSON struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
