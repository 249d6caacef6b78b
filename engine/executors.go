package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/project-chip/certification-tool-backend-sub001/bridge"
	"github.com/project-chip/certification-tool-backend-sub001/registry"
	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// Runner tool prefixes inside the container.
const (
	chipToolPrefix   = "chip-tool"
	pythonRunnerCmd  = "python3"
	chipAppPrefix    = "chip-app"
	testCommandVerb  = "tests"
	testNamePrefix   = "Test_"
)

// caseExecutor runs one case of a given classification. Executors are
// selected from the declaration's classification tag.
type caseExecutor func(ctx context.Context, env *suiteEnv, cs *types.CaseExecution) error

// suiteEnv is the per-suite execution environment handed to case executors.
type suiteEnv struct {
	declaration  *types.SuiteDeclaration
	bridge       Bridge
	commissioner Commissioner
	commissioned bool
}

func (c *Coordinator) executorFor(class types.Classification) caseExecutor {
	if exec, ok := c.executors[class]; ok {
		return exec
	}
	return c.runAutomatedCase
}

// runManualCase walks every step through an operator pass/fail prompt.
func (c *Coordinator) runManualCase(ctx context.Context, env *suiteEnv, cs *types.CaseExecution) error {
	for _, step := range cs.Steps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		step.MarkExecuting()

		message := step.Title
		if decl := cs.Declaration.Steps[step.ExecutionIndex]; decl.Verification != "" {
			message += "\n\n" + decl.Verification
		}
		choice, err := c.config.Prompter.PromptOptions(
			ctx, message, []string{OptionPass, OptionFail}, c.promptTimeout())
		switch {
		case err != nil:
			step.AppendFailure(fmt.Sprintf("no verification response: %v", err))
		case choice == OptionFail:
			step.AppendFailure("operator marked step as failed")
		case choice != OptionPass:
			step.AppendFailure(fmt.Sprintf("unexpected verification response %q", choice))
		}
		step.MarkCompleted()
	}
	return nil
}

// runAutomatedCase executes the test script in the runner container and
// folds its hook events into step state while the script runs. The exec is
// streamed so prompts raised mid-script reach the operator and the answer
// flows back through the exec's stdin.
func (c *Coordinator) runAutomatedCase(ctx context.Context, env *suiteEnv, cs *types.CaseExecution) error {
	if env.bridge == nil {
		return errors.New("no runner container available for automated case")
	}

	c.config.Hooks.Reset()

	cmd, opts := runnerInvocation(cs.Declaration)
	opts.Stream = true
	opts.Stdin = true
	res, err := env.bridge.SendCommand(ctx, cmd, opts)
	if err != nil {
		return err
	}

	drained := make(chan struct{})
	if res.Stream != nil {
		go func() {
			defer close(drained)
			for res.Stream.Next() {
				if c.config.Logs != nil {
					c.config.Logs("INFO", res.Stream.Text())
				}
			}
		}()
	} else {
		close(drained)
		c.streamRunnerOutput(res.Output)
	}

	foldErr := c.foldEvents(ctx, cs, res.Input)

	if res.Stream != nil {
		// Unblocks the drain goroutine when folding ended first.
		res.Stream.Close()
	}
	<-drained

	code := res.ExitCode
	if code == bridge.UnresolvedExitCode {
		resolved, err := env.bridge.ExecExitCode(ctx, res.ExecID)
		if err != nil {
			c.config.Log.Debug("Runner exit code unresolved", "publicID", cs.PublicID, "error", err)
		}
		code = resolved
	}
	if code != 0 && code != bridge.UnresolvedExitCode {
		c.config.Log.Warn("Runner exited with non-zero code", "publicID", cs.PublicID, "exitCode", code)
	}

	if foldErr != nil {
		return foldErr
	}
	c.finishSteps(cs)
	return nil
}

// streamRunnerOutput forwards captured runner output line by line to the
// configured log sink.
func (c *Coordinator) streamRunnerOutput(output []byte) {
	if c.config.Logs == nil || len(output) == 0 {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(string(output), "\n"), "\n") {
		c.config.Logs("INFO", line)
	}
}

// runSimulatedCase drives the simulated app side instead of the controller.
func (c *Coordinator) runSimulatedCase(ctx context.Context, env *suiteEnv, cs *types.CaseExecution) error {
	return c.runAutomatedCase(ctx, env, cs)
}

// runCommissioningCase is the performance commissioning loop: the runner
// commissions repeatedly and reports one test_start per iteration.
func (c *Coordinator) runCommissioningCase(ctx context.Context, env *suiteEnv, cs *types.CaseExecution) error {
	if err := c.runAutomatedCase(ctx, env, cs); err != nil {
		return err
	}
	c.config.Log.Info("Commissioning loop finished", "publicID", cs.PublicID, "iterations", cs.Iterations)
	return nil
}

// runnerInvocation maps a declaration onto the tool invocation inside the
// container. YAML tests run through the chip-tool test harness by safe
// name; python scripts run directly.
func runnerInvocation(decl *types.CaseDeclaration) (string, bridge.CommandOptions) {
	if filepath.Ext(decl.SourcePath) == ".py" {
		return decl.SourcePath, bridge.CommandOptions{Prefix: pythonRunnerCmd}
	}
	prefix := chipToolPrefix
	if decl.Classification == types.ClassSimulated {
		prefix = chipAppPrefix
	}
	cmd := fmt.Sprintf("%s %s%s", testCommandVerb, testNamePrefix, registry.SafeName(decl.Metadata.PublicID))
	return cmd, bridge.CommandOptions{Prefix: prefix}
}

// finishSteps resolves steps the runner never reported on. After a clean
// stop they pass with the case; after a failure or error they were never
// reached and fold to not applicable.
func (c *Coordinator) finishSteps(cs *types.CaseExecution) {
	aborted := len(cs.Errors) > 0
	for _, step := range cs.Steps {
		if len(step.Errors) > 0 || len(step.Failures) > 0 {
			aborted = true
		}
	}
	for _, step := range cs.Steps {
		switch {
		case step.Completed():
		case step.State() == types.StateExecuting:
			step.MarkCompleted()
		case aborted:
			step.MarkNotApplicable()
		default:
			step.MarkCompleted()
		}
	}
}
