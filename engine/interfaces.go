package engine

import (
	"context"
	"time"

	"github.com/project-chip/certification-tool-backend-sub001/bridge"
	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// Prompt option values an operator can return.
const (
	OptionRetry  = "RETRY"
	OptionCancel = "CANCEL"
	OptionPass   = "PASS"
	OptionFail   = "FAIL"
	OptionOK     = "OK"
)

// Bridge is the per-suite runner container handle the coordinator drives.
// *bridge.Bridge satisfies it.
type Bridge interface {
	Start(ctx context.Context) error
	SendCommand(ctx context.Context, cmd string, opts bridge.CommandOptions) (*bridge.ExecResult, error)
	ExecExitCode(ctx context.Context, execID string) (int, error)
	SetPICS(ctx context.Context, pics types.PICS) error
	ResetPICSState()
	Destroy(ctx context.Context)
}

// Commissioner pairs and unpairs the device under test. It is injected as a
// process-scoped collaborator so suites never construct their own.
type Commissioner interface {
	Pair(ctx context.Context) error
	Unpair(ctx context.Context) error
}

// Prompter carries prompt round trips to the operator. Implementations
// resolve to the chosen option, or return an error on timeout and
// cancellation.
type Prompter interface {
	PromptOptions(ctx context.Context, message string, options []string, timeout time.Duration) (string, error)
	PromptText(ctx context.Context, message, placeholder, defaultValue string, timeout time.Duration) (string, error)
}

// RunStore persists execution snapshots, one call per state transition. The
// engine writes through it and never reads decisions back. A nil store
// disables persistence.
type RunStore interface {
	SaveRun(ctx context.Context, run *types.TestRun) error
	SaveSuite(ctx context.Context, suite *types.SuiteExecution) error
	SaveCase(ctx context.Context, c *types.CaseExecution) error
	SaveStep(ctx context.Context, step *types.StepExecution) error
}

// UpdateSink receives one notification per hierarchy state transition. The
// node is one of the four execution levels.
type UpdateSink func(node any)
