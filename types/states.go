package types

// TestState represents the possible states of a node in the test execution
// hierarchy (run, suite, case or step).
type TestState string

const (
	StatePending          TestState = "pending"
	StateExecuting        TestState = "executing"
	StatePendingActuation TestState = "pending_actuation"
	StatePassed           TestState = "passed"
	StateFailed           TestState = "failed"
	StateError            TestState = "error"
	StateNotApplicable    TestState = "not_applicable"
	StateCancelled        TestState = "cancelled"
)

// Terminal reports whether a state allows no further transitions.
func (s TestState) Terminal() bool {
	switch s {
	case StatePassed, StateFailed, StateError, StateNotApplicable, StateCancelled:
		return true
	default:
		return false
	}
}

// ComputeState folds an ordered list of child states into the parent state.
// The precedence follows the hierarchy rules: a cancelled child poisons the
// parent, then error, then failure. A parent is only passed when every child
// reached passed (children that are all not-applicable yield not-applicable).
func ComputeState(children []TestState) TestState {
	if len(children) == 0 {
		return StatePassed
	}

	allNotApplicable := true
	for _, c := range children {
		if c != StateNotApplicable {
			allNotApplicable = false
			break
		}
	}

	for _, c := range children {
		if c == StateCancelled {
			return StateCancelled
		}
	}
	for _, c := range children {
		if c == StateError {
			return StateError
		}
	}
	for _, c := range children {
		if c == StateFailed {
			return StateFailed
		}
	}
	for _, c := range children {
		if c == StatePending || c == StateExecuting || c == StatePendingActuation {
			return StatePending
		}
	}
	if allNotApplicable {
		return StateNotApplicable
	}

	return StatePassed
}
