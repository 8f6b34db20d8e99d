package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/livelist/internal/harness"
)

// FileValidation is the outcome for one validated file.
type FileValidation struct {
	File  string `json:"file"`
	Type  string `json:"type"` // "scenario" or "fixture"
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Validate scenarios and fixtures without running them",
		Long: `Parse and validate scenario YAML files and CUE fixtures.

Directories are walked; *.yaml and *.yml files are checked as scenarios,
*.cue files as fixtures. Nothing is bound or executed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := collectValidationFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		if err := f.Error(ErrCodeNotFound, "no scenario or fixture files found", paths); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitCommandError, "no scenario or fixture files found")
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		f.VerboseLog("validating %s", file)
		v := validateFile(file)
		if v.Error != "" {
			result.Valid = false
		}
		result.Files = append(result.Files, v)
	}

	if f.JSON() {
		var failure *CLIError
		if !result.Valid {
			failure = &CLIError{Code: ErrCodeLoadFailed, Message: "validation failed"}
		}
		if err := f.Response(result, failure); err != nil {
			return err
		}
	} else {
		for _, v := range result.Files {
			if v.Error == "" {
				fmt.Fprintf(f.Writer, "%s %s (%s)\n", passText(true), v.File, v.Type)
				continue
			}
			fmt.Fprintf(f.Writer, "%s %s (%s)\n", passText(false), v.File, v.Type)
			fmt.Fprintf(f.Writer, "  [%s] %s\n", v.Code, v.Error)
		}
	}

	if !result.Valid {
		// Invalid inputs are command-level errors
		return NewExitError(ExitCommandError, "validation failed")
	}
	if !f.JSON() {
		fmt.Fprintf(f.Writer, "%s All files valid\n", passText(true))
	}
	return nil
}

// collectValidationFiles expands paths into scenario and fixture files.
func collectValidationFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("path not found: %s", p))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot access path", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && fileType(path) != "" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to scan directory", err)
		}
	}
	return files, nil
}

func fileType(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "scenario"
	case ".cue":
		return "fixture"
	}
	return ""
}

// validateFile loads one file the way run or watch would.
func validateFile(path string) FileValidation {
	v := FileValidation{File: path, Type: fileType(path)}

	switch v.Type {
	case "scenario":
		if _, err := harness.LoadScenario(path); err != nil {
			v.Code = ErrCodeLoadFailed
			v.Error = err.Error()
		}
	case "fixture":
		fixture, err := LoadFixture(path)
		if err == nil {
			// Every struct must convert; floats anywhere are rejected.
			_, err = cueToValue(fixture.Value)
		}
		if err != nil {
			v.Code = ErrCodeLoadFailed
			v.Error = err.Error()
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				v.Code = loadErr.Code
				if loadErr.Pos.IsValid() {
					v.Line = loadErr.Pos.Line()
				}
			}
		}
	default:
		v.Type = "unknown"
		v.Code = ErrCodeLoadFailed
		v.Error = "unsupported file type (want .yaml, .yml or .cue)"
	}
	return v
}
