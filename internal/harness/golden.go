package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/livelist/internal/ir"
)

// GoldenDir is where golden traces live relative to a scenario directory.
const GoldenDir = "golden"

// TraceSnapshot captures the published trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEntry
	Final        State
}

// toValue converts the snapshot to an ir.Value for canonical JSON.
// Empty error strings are omitted.
func (s *TraceSnapshot) toValue() ir.Value {
	trace := make(ir.Array, len(s.Trace))
	for i, e := range s.Trace {
		obj := ir.Obj(
			ir.O("seq", ir.Int(e.Seq)),
			ir.O("token", ir.String(e.Token)),
			ir.O("loading", ir.Bool(e.Loading)),
			ir.O("keys", keysValue(e.Keys)),
		)
		if e.Error != "" {
			obj["error"] = ir.String(e.Error)
		}
		trace[i] = obj
	}

	final := ir.Obj(
		ir.O("loading", ir.Bool(s.Final.Loading)),
		ir.O("keys", keysValue(s.Final.Keys)),
	)
	if s.Final.Error != "" {
		final["error"] = ir.String(s.Final.Error)
	}

	return ir.Obj(
		ir.O("scenario_name", ir.String(s.ScenarioName)),
		ir.O("trace", trace),
		ir.O("final", final),
	)
}

func keysValue(keys []string) ir.Array {
	out := make(ir.Array, len(keys))
	for i, k := range keys {
		out[i] = ir.String(k)
	}
	return out
}

// GoldenBytes renders a result's trace as canonical JSON.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	return ir.MarshalCanonical(snap.toValue())
}

// GoldenPath returns the golden file path for a scenario file:
// <dir>/golden/<base name>.golden.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, GoldenDir, name+".golden")
}

// RunWithGolden executes a scenario and compares the trace against
// <fixtureDir>/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, fixtureDir string) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	data, err := GoldenBytes(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
