package types

// Observer receives a node of the execution hierarchy every time its state
// or attached error/failure lists change. The node is one of *TestRun,
// *SuiteExecution, *CaseExecution or *StepExecution.
type Observer func(node any)

// TestRun is the root aggregate of one test execution. It is created when a
// run starts and mutated only by the execution engine.
type TestRun struct {
	ID       int
	Title    string
	Operator string
	Archived bool
	Suites   []*SuiteExecution

	state    TestState
	observer Observer
}

// SuiteExecution tracks the execution of one test suite within a run.
type SuiteExecution struct {
	PublicID       string
	CollectionID   string
	ExecutionIndex int
	Declaration    *SuiteDeclaration
	Cases          []*CaseExecution

	state  TestState
	notify Observer
}

// CaseExecution tracks the execution of one test case within a suite.
type CaseExecution struct {
	PublicID       string
	ExecutionIndex int
	Declaration    *CaseDeclaration
	Steps          []*StepExecution
	Errors         []string
	Failures       []string
	Iterations     int

	state  TestState
	notify Observer
}

// StepExecution tracks one step of a test case.
type StepExecution struct {
	Title          string
	ExecutionIndex int
	Errors         []string
	Failures       []string

	state  TestState
	notify Observer
}

// NewTestRun builds a pending run hierarchy from suite declarations.
func NewTestRun(id int, title string, operator string, suites []*SuiteDeclaration) *TestRun {
	run := &TestRun{
		ID:       id,
		Title:    title,
		Operator: operator,
		state:    StatePending,
	}
	for i, decl := range suites {
		run.Suites = append(run.Suites, newSuiteExecution(decl, i))
	}
	return run
}

func newSuiteExecution(decl *SuiteDeclaration, index int) *SuiteExecution {
	suite := &SuiteExecution{
		PublicID:       decl.Metadata.PublicID,
		CollectionID:   decl.CollectionID,
		ExecutionIndex: index,
		Declaration:    decl,
		state:          StatePending,
	}
	for i, c := range decl.Cases {
		suite.Cases = append(suite.Cases, newCaseExecution(c, i))
	}
	return suite
}

func newCaseExecution(decl *CaseDeclaration, index int) *CaseExecution {
	ce := &CaseExecution{
		PublicID:       decl.Metadata.PublicID,
		ExecutionIndex: index,
		Declaration:    decl,
		state:          StatePending,
	}
	for i, s := range decl.Steps {
		ce.Steps = append(ce.Steps, &StepExecution{
			Title:          s.Label,
			ExecutionIndex: i,
			state:          StatePending,
		})
	}
	return ce
}

// Subscribe registers an observer for state changes on the run and all its
// sub-models. Subscribing replaces any previous observer.
func (r *TestRun) Subscribe(obs Observer) {
	r.observer = obs
	for _, s := range r.Suites {
		s.notify = obs
		for _, c := range s.Cases {
			c.notify = obs
			for _, st := range c.Steps {
				st.notify = obs
			}
		}
	}
}

// Run level.

func (r *TestRun) State() TestState { return r.state }

func (r *TestRun) setState(v TestState) {
	if r.state == v {
		return
	}
	r.state = v
	if r.observer != nil {
		r.observer(r)
	}
}

func (r *TestRun) Completed() bool {
	return r.state != StatePending && r.state != StateExecuting
}

func (r *TestRun) MarkExecuting() { r.setState(StateExecuting) }

// MarkCompleted folds the suite states into the run state. Completing an
// already terminal run is a no-op.
func (r *TestRun) MarkCompleted() {
	if r.Completed() {
		return
	}
	states := make([]TestState, len(r.Suites))
	for i, s := range r.Suites {
		states[i] = s.state
	}
	r.setState(ComputeState(states))
}

// Cancel marks the run and every non-completed descendant cancelled.
func (r *TestRun) Cancel() {
	for _, s := range r.Suites {
		s.Cancel()
	}
	if !r.Completed() {
		r.setState(StateCancelled)
	}
}

// Suite level.

func (s *SuiteExecution) State() TestState { return s.state }

func (s *SuiteExecution) setState(v TestState) {
	if s.state == v {
		return
	}
	s.state = v
	if s.notify != nil {
		s.notify(s)
	}
}

func (s *SuiteExecution) Completed() bool {
	return s.state != StatePending && s.state != StateExecuting
}

func (s *SuiteExecution) MarkExecuting() { s.setState(StateExecuting) }

func (s *SuiteExecution) MarkCompleted() {
	if s.Completed() {
		return
	}
	states := make([]TestState, len(s.Cases))
	for i, c := range s.Cases {
		states[i] = c.state
	}
	s.setState(ComputeState(states))
}

// RecordError forces the suite into the error state, regardless of case
// outcomes. Used for setup/cleanup failures.
func (s *SuiteExecution) RecordError() {
	s.setState(StateError)
}

// Cancel marks the suite and remaining cases cancelled. Cancelling a
// completed suite is a no-op.
func (s *SuiteExecution) Cancel() {
	for _, c := range s.Cases {
		c.Cancel()
	}
	if !s.Completed() {
		s.setState(StateCancelled)
	}
}

// Case level.

func (c *CaseExecution) State() TestState { return c.state }

func (c *CaseExecution) setState(v TestState) {
	if c.state == v {
		return
	}
	c.state = v
	if c.notify != nil {
		c.notify(c)
	}
}

func (c *CaseExecution) Completed() bool {
	return c.state != StatePending && c.state != StateExecuting && c.state != StatePendingActuation
}

func (c *CaseExecution) MarkExecuting() { c.setState(StateExecuting) }

// MarkPendingActuation flags the case as blocked on operator input.
func (c *CaseExecution) MarkPendingActuation() { c.setState(StatePendingActuation) }

func (c *CaseExecution) MarkCompleted() {
	if c.Completed() {
		return
	}
	states := make([]TestState, len(c.Steps))
	for i, st := range c.Steps {
		states[i] = st.state
	}
	c.setState(ComputeState(states))
}

// RecordError attaches an error message and moves the case to error state.
func (c *CaseExecution) RecordError(msg string) {
	c.Errors = append(c.Errors, msg)
	c.setState(StateError)
	if c.notify != nil {
		c.notify(c)
	}
}

// AppendFailure attaches a failure message and moves the case to failed.
func (c *CaseExecution) AppendFailure(msg string) {
	c.Failures = append(c.Failures, msg)
	c.setState(StateFailed)
	if c.notify != nil {
		c.notify(c)
	}
}

// MarkNotApplicable marks the case and every pending step not applicable.
func (c *CaseExecution) MarkNotApplicable() {
	for _, st := range c.Steps {
		if !st.Completed() {
			st.setState(StateNotApplicable)
		}
	}
	c.setState(StateNotApplicable)
}

func (c *CaseExecution) Cancel() {
	for _, st := range c.Steps {
		st.Cancel()
	}
	if !c.Completed() {
		c.setState(StateCancelled)
	}
}

// CurrentStep returns the first step that has not completed, or nil when
// all steps are done.
func (c *CaseExecution) CurrentStep() *StepExecution {
	for _, st := range c.Steps {
		if !st.Completed() {
			return st
		}
	}
	return nil
}

// Step level.

func (st *StepExecution) State() TestState { return st.state }

func (st *StepExecution) setState(v TestState) {
	if st.state == v {
		return
	}
	st.state = v
	if st.notify != nil {
		st.notify(st)
	}
}

func (st *StepExecution) Completed() bool {
	return st.state != StatePending && st.state != StateExecuting && st.state != StatePendingActuation
}

func (st *StepExecution) MarkExecuting() { st.setState(StateExecuting) }

func (st *StepExecution) MarkPendingActuation() { st.setState(StatePendingActuation) }

// RecordError attaches an error message and moves the step to error state.
func (st *StepExecution) RecordError(msg string) {
	st.Errors = append(st.Errors, msg)
	st.setState(StateError)
	if st.notify != nil {
		st.notify(st)
	}
}

// AppendFailure records a failure message and marks the step failed.
func (st *StepExecution) AppendFailure(msg string) {
	st.Failures = append(st.Failures, msg)
	st.setState(StateFailed)
	if st.notify != nil {
		st.notify(st)
	}
}

func (st *StepExecution) MarkNotApplicable() { st.setState(StateNotApplicable) }

// MarkCompleted resolves the step from its recorded failures: failed when
// any failure was appended, passed otherwise. Terminal steps are untouched.
func (st *StepExecution) MarkCompleted() {
	if st.Completed() {
		return
	}
	if len(st.Failures) > 0 {
		st.setState(StateFailed)
		return
	}
	st.setState(StatePassed)
}

func (st *StepExecution) Cancel() {
	if st.Completed() {
		return
	}
	st.setState(StateCancelled)
}
