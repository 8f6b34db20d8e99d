package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateCommand_ValidTree(t *testing.T) {
	out, err := runValidateCommand(t, "text", "testdata/scenarios", chatFixture)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ testdata/scenarios/window.yaml (scenario)")
	assert.Contains(t, out, "✓ testdata/scenarios/denied.yaml (scenario)")
	assert.Contains(t, out, "✓ testdata/fixtures/chat.cue (fixture)")
	assert.Contains(t, out, "All files valid")
}

func TestValidateCommand_InvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "typo.yaml", "name: x\nquery: {path: p}\nassertion: []\n")
	copyFile(t, floatFixture, dir)
	writeFile(t, dir, "ok.yaml", "name: ok\nquery: {path: p}\nassertions: [{type: count, count: 0}]\n")

	out, err := runValidateCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Files, 3)

	byName := map[string]FileValidation{}
	for _, f := range resp.Data.Files {
		byName[filepath.Base(f.File)] = f
	}
	assert.Equal(t, "fixture", byName["float.cue"].Type)
	assert.Equal(t, ErrCodeInvalidValue, byName["float.cue"].Code)
	assert.Contains(t, byName["float.cue"].Error, "floats are not supported")
	assert.Contains(t, byName["typo.yaml"].Error, "failed to parse YAML")
	assert.Empty(t, byName["ok.yaml"].Error)
}

func TestValidateCommand_TextFailure(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "name: bad\nquery: {path: p, limit_to_first: 1, limit_to_last: 1}\nassertions: [{type: count, count: 0}]\n")

	out, err := runValidateCommand(t, "text", bad)
	require.Error(t, err)
	assert.Contains(t, out, "✗ "+bad+" (scenario)")
	assert.Contains(t, out, "mutually exclusive")
}

func TestValidateCommand_UnsupportedFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "hello")

	out, err := runValidateCommand(t, "text", path)
	require.Error(t, err)
	assert.Contains(t, out, "unsupported file type")
}

func TestValidateCommand_Errors(t *testing.T) {
	_, err := runValidateCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")

	_, err = runValidateCommand(t, "text", "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "path not found")

	out, err := runValidateCommand(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "no scenario or fixture files found")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestValidateCommand_NoFilesWriteError(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(failingWriter{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.EqualError(t, err, "write output: disk full")
}
