package harness

import "fmt"

// ScenarioError reports a scenario that could not be executed, as opposed
// to one whose assertions failed.
type ScenarioError struct {
	Scenario string
	// Step is the failing step index, or -1 for setup.
	Step int
	Op   string
	Err  error
}

func (e *ScenarioError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("scenario %s: %s: %v", e.Scenario, e.Op, e.Err)
	}
	return fmt.Sprintf("scenario %s: steps[%d] %s: %v", e.Scenario, e.Step, e.Op, e.Err)
}

func (e *ScenarioError) Unwrap() error {
	return e.Err
}
