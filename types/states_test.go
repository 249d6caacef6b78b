package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeState(t *testing.T) {
	tests := []struct {
		name     string
		children []TestState
		want     TestState
	}{
		{
			name:     "all passed",
			children: []TestState{StatePassed, StatePassed},
			want:     StatePassed,
		},
		{
			name:     "failed child forces failed",
			children: []TestState{StatePassed, StateFailed, StatePassed},
			want:     StateFailed,
		},
		{
			name:     "error outranks failed",
			children: []TestState{StateFailed, StateError},
			want:     StateError,
		},
		{
			name:     "cancelled outranks error",
			children: []TestState{StateError, StateCancelled},
			want:     StateCancelled,
		},
		{
			name:     "pending child keeps parent pending",
			children: []TestState{StatePassed, StatePending},
			want:     StatePending,
		},
		{
			name:     "all not applicable",
			children: []TestState{StateNotApplicable, StateNotApplicable},
			want:     StateNotApplicable,
		},
		{
			name:     "not applicable mixed with passed is passed",
			children: []TestState{StatePassed, StateNotApplicable},
			want:     StatePassed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeState(tc.children))
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []TestState{StatePassed, StateFailed, StateError, StateNotApplicable, StateCancelled} {
		assert.True(t, s.Terminal(), "state %s should be terminal", s)
	}
	for _, s := range []TestState{StatePending, StateExecuting, StatePendingActuation} {
		assert.False(t, s.Terminal(), "state %s should not be terminal", s)
	}
}

func newDeclaredRun() *TestRun {
	caseDecl := &CaseDeclaration{
		Metadata: Metadata{PublicID: "TC-ACE-1.1", Title: "TC-ACE-1.1"},
		Steps: []StepDeclaration{
			{Label: "Step one"},
			{Label: "Step two"},
		},
	}
	suiteDecl := &SuiteDeclaration{
		Metadata:     Metadata{PublicID: "FirstChipToolSuite"},
		CollectionID: "SDK YAML Tests",
		Cases:        []*CaseDeclaration{caseDecl},
	}
	return NewTestRun(1, "run", "operator", []*SuiteDeclaration{suiteDecl})
}

func TestRunHierarchyFolding(t *testing.T) {
	run := newDeclaredRun()
	require.Len(t, run.Suites, 1)
	suite := run.Suites[0]
	require.Len(t, suite.Cases, 1)
	tcase := suite.Cases[0]
	require.Len(t, tcase.Steps, 2)

	run.MarkExecuting()
	suite.MarkExecuting()
	tcase.MarkExecuting()
	assert.Equal(t, StateExecuting, run.State())

	for _, st := range tcase.Steps {
		st.MarkExecuting()
		st.MarkCompleted()
	}
	tcase.MarkCompleted()
	suite.MarkCompleted()
	run.MarkCompleted()

	assert.Equal(t, StatePassed, tcase.State())
	assert.Equal(t, StatePassed, suite.State())
	assert.Equal(t, StatePassed, run.State())
}

func TestRunHierarchyChildError(t *testing.T) {
	run := newDeclaredRun()
	suite := run.Suites[0]
	tcase := suite.Cases[0]

	run.MarkExecuting()
	suite.MarkExecuting()
	tcase.MarkExecuting()

	tcase.Steps[0].RecordError("boom")
	tcase.Steps[1].MarkNotApplicable()
	tcase.MarkCompleted()
	suite.MarkCompleted()
	run.MarkCompleted()

	assert.Equal(t, StateError, tcase.State())
	assert.Equal(t, StateError, suite.State())
	assert.Equal(t, StateError, run.State())
	assert.NotEqual(t, StatePassed, run.State())
}

func TestCancelIsAbsorbing(t *testing.T) {
	run := newDeclaredRun()
	suite := run.Suites[0]
	tcase := suite.Cases[0]

	run.MarkExecuting()
	tcase.Steps[0].MarkExecuting()
	tcase.Steps[0].MarkCompleted() // passed before cancel

	run.Cancel()

	assert.Equal(t, StatePassed, tcase.Steps[0].State(), "completed step is untouched by cancel")
	assert.Equal(t, StateCancelled, tcase.Steps[1].State())
	assert.Equal(t, StateCancelled, tcase.State())
	assert.Equal(t, StateCancelled, run.State())

	// No further transition out of cancelled.
	tcase.MarkCompleted()
	run.MarkCompleted()
	assert.Equal(t, StateCancelled, tcase.State())
	assert.Equal(t, StateCancelled, run.State())
}

func TestObserverNotifiedPerTransition(t *testing.T) {
	run := newDeclaredRun()
	var seen []any
	run.Subscribe(func(node any) { seen = append(seen, node) })

	run.MarkExecuting()
	step := run.Suites[0].Cases[0].Steps[0]
	step.MarkExecuting()
	step.MarkExecuting() // no change, no notification

	require.Len(t, seen, 2)
	assert.Same(t, run, seen[0])
	assert.Same(t, step, seen[1])
}

func TestStepFailureResolution(t *testing.T) {
	run := newDeclaredRun()
	step := run.Suites[0].Cases[0].Steps[0]

	step.MarkExecuting()
	step.AppendFailure("expected 1 got 2")
	assert.Equal(t, StateFailed, step.State())
	assert.Equal(t, []string{"expected 1 got 2"}, step.Failures)

	step.MarkCompleted()
	assert.Equal(t, StateFailed, step.State())
}
