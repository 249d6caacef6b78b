package engine

import "fmt"

// SuiteSetupError marks a suite whose setup could not complete. The suite
// folds to the error state, its cases are skipped, and the run moves on.
type SuiteSetupError struct {
	Reason string
}

func (e *SuiteSetupError) Error() string {
	return fmt.Sprintf("suite setup failed: %s", e.Reason)
}

// CommissioningError is a failed pairing attempt. It is retryable through
// the operator prompt, unlike other setup errors.
type CommissioningError struct {
	Err error
}

func (e *CommissioningError) Error() string {
	return fmt.Sprintf("commissioning failed: %v", e.Err)
}

func (e *CommissioningError) Unwrap() error {
	return e.Err
}

// PromptContractError is an operator prompt round trip the engine cannot
// interpret. Unlike setup failures it aborts the whole run.
type PromptContractError struct {
	Err error
}

func (e *PromptContractError) Error() string {
	return e.Err.Error()
}

func (e *PromptContractError) Unwrap() error {
	return e.Err
}
