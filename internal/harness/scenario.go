package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario drives one binding against an in-memory feed and checks what it
// published.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Query is the query bound before the first step.
	Query QuerySpec `yaml:"query"`

	// Seed holds the children present under Query.Path before binding.
	// Values are converted with ir.FromGo; floats are rejected.
	Seed map[string]any `yaml:"seed,omitempty"`

	// Hold starts the path unloaded: the initial sync stays pending until
	// a release step.
	Hold bool `yaml:"hold,omitempty"`

	// Steps run in order. The binding is flushed after each one.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final published snapshot.
	Assertions []Assertion `yaml:"assertions"`
}

// QuerySpec describes a memfeed query.
type QuerySpec struct {
	Path         string `yaml:"path"`
	OrderByChild string `yaml:"order_by_child,omitempty"`
	LimitToFirst int    `yaml:"limit_to_first,omitempty"`
	LimitToLast  int    `yaml:"limit_to_last,omitempty"`
}

// Step is one feed mutation or binding operation. Exactly one field other
// than Expect must be set.
type Step struct {
	// Set writes a child under the current path (or Set.Path).
	Set *SetStep `yaml:"set,omitempty"`

	// Update writes several children at once; null values delete.
	Update map[string]any `yaml:"update,omitempty"`

	// Remove deletes a child of the current path.
	Remove string `yaml:"remove,omitempty"`

	// Fail cancels the current path with this message.
	Fail string `yaml:"fail,omitempty"`

	// Recover clears a failure on the current path.
	Recover bool `yaml:"recover,omitempty"`

	// Hold marks the current path unloaded.
	Hold bool `yaml:"hold,omitempty"`

	// Release marks the current path loaded.
	Release bool `yaml:"release,omitempty"`

	// Rebind binds a new query. An empty path keeps the current path.
	Rebind *QuerySpec `yaml:"rebind,omitempty"`

	// Unbind detaches the binding.
	Unbind bool `yaml:"unbind,omitempty"`

	// Expect is checked against the published state after this step.
	Expect []Assertion `yaml:"expect,omitempty"`
}

// SetStep writes one child.
type SetStep struct {
	Path  string `yaml:"path,omitempty"`
	Key   string `yaml:"key"`
	Value any    `yaml:"value"`
}

// Op names the step's operation. Empty if none is set.
func (s Step) Op() string {
	ops := s.ops()
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

func (s Step) ops() []string {
	var ops []string
	if s.Set != nil {
		ops = append(ops, "set")
	}
	if s.Update != nil {
		ops = append(ops, "update")
	}
	if s.Remove != "" {
		ops = append(ops, "remove")
	}
	if s.Fail != "" {
		ops = append(ops, "fail")
	}
	if s.Recover {
		ops = append(ops, "recover")
	}
	if s.Hold {
		ops = append(ops, "hold")
	}
	if s.Release {
		ops = append(ops, "release")
	}
	if s.Rebind != nil {
		ops = append(ops, "rebind")
	}
	if s.Unbind {
		ops = append(ops, "unbind")
	}
	return ops
}

// Assertion checks one property of a published snapshot.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Keys is the expected key order (keys).
	Keys []string `yaml:"keys,omitempty"`

	// Loading is the expected loading flag (loading).
	Loading *bool `yaml:"loading,omitempty"`

	// Error is the expected error message; "" means no error (error).
	Error *string `yaml:"error,omitempty"`

	// Count is the expected list length (count) or number of published
	// snapshots (published).
	Count *int `yaml:"count,omitempty"`

	// Key and Value name one record and its expected value (value).
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertKeys      = "keys"
	AssertLoading   = "loading"
	AssertError     = "error"
	AssertCount     = "count"
	AssertValue     = "value"
	AssertPublished = "published"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if err := validateQuery("query", s.Query, true); err != nil {
		return err
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		ops := step.ops()
		if len(ops) != 1 {
			return fmt.Errorf("steps[%d]: exactly one operation is required, got %d %v", i, len(ops), ops)
		}
		if step.Set != nil && step.Set.Key == "" {
			return fmt.Errorf("steps[%d].set: key is required", i)
		}
		if step.Rebind != nil {
			if err := validateQuery(fmt.Sprintf("steps[%d].rebind", i), *step.Rebind, false); err != nil {
				return err
			}
		}
		for j, a := range step.Expect {
			if err := validateAssertion(fmt.Sprintf("steps[%d].expect[%d]", i, j), &a); err != nil {
				return err
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(fmt.Sprintf("assertions[%d]", i), &a); err != nil {
			return err
		}
	}

	return nil
}

func validateQuery(field string, q QuerySpec, pathRequired bool) error {
	if pathRequired && q.Path == "" {
		return fmt.Errorf("%s: path is required", field)
	}
	if q.LimitToFirst < 0 || q.LimitToLast < 0 {
		return fmt.Errorf("%s: limits must be non-negative", field)
	}
	if q.LimitToFirst > 0 && q.LimitToLast > 0 {
		return fmt.Errorf("%s: limit_to_first and limit_to_last are mutually exclusive", field)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(field string, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("%s: type is required", field)
	case AssertKeys:
	case AssertLoading:
		if a.Loading == nil {
			return fmt.Errorf("%s: loading is required for loading", field)
		}
	case AssertError:
		if a.Error == nil {
			return fmt.Errorf("%s: error is required for error (use \"\" for none)", field)
		}
	case AssertCount, AssertPublished:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("%s: non-negative count is required for %s", field, a.Type)
		}
	case AssertValue:
		if a.Key == "" {
			return fmt.Errorf("%s: key is required for value", field)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", field, a.Type)
	}
	return nil
}
