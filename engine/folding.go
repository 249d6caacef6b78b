package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/project-chip/certification-tool-backend-sub001/hooks"
	"github.com/project-chip/certification-tool-backend-sub001/types"
)

const (
	// DefaultEventWaitTimeout bounds how long the engine waits for the next
	// hook event. A runner that dies without its stop event surfaces as a
	// step error instead of an indefinite poll.
	DefaultEventWaitTimeout = 30 * time.Second

	eventPollInterval = 20 * time.Millisecond
)

// foldEvents consumes hook events in arrival order and folds them into
// step/case state until the runner stops or the watchdog fires. It runs
// concurrently with the exec; runnerIn is the exec's stdin for prompt
// responses, nil when the runner takes no input.
func (c *Coordinator) foldEvents(ctx context.Context, cs *types.CaseExecution, runnerIn io.Writer) error {
	deadline := time.Now().Add(c.eventWaitTimeout())
	for {
		ev, ok := c.config.Hooks.Poll()
		if !ok {
			if c.config.Hooks.Finished() {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("runner produced no events for %s, assuming it died", c.eventWaitTimeout())
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(eventPollInterval):
			}
			continue
		}

		deadline = time.Now().Add(c.eventWaitTimeout())
		if done := c.applyEvent(ctx, cs, ev, runnerIn); done {
			return nil
		}
	}
}

// applyEvent folds one hook event. It reports true when the runner is done.
func (c *Coordinator) applyEvent(ctx context.Context, cs *types.CaseExecution, ev hooks.Event, runnerIn io.Writer) bool {
	switch ev.Type {
	case hooks.EventStart:
		c.config.Log.Debug("Runner started", "count", ev.Count)

	case hooks.EventTestStart:
		cs.Iterations++
		c.config.Log.Debug("Runner test started", "name", ev.Name, "iteration", cs.Iterations)

	case hooks.EventStepStart:
		if cur := executingStep(cs); cur != nil {
			cur.MarkCompleted()
		}
		if next := cs.CurrentStep(); next != nil {
			next.MarkExecuting()
		}

	case hooks.EventStepSuccess:
		if cur := executingStep(cs); cur != nil {
			cur.MarkCompleted()
		}

	case hooks.EventStepFailure:
		if cur := executingStep(cs); cur != nil {
			msg := ev.Received
			if msg == "" {
				msg = "step failed"
			}
			cur.AppendFailure(msg)
		} else {
			cs.AppendFailure(fmt.Sprintf("step failure without an active step: %s", ev.Received))
		}

	case hooks.EventStepSkipped:
		if cur := executingStep(cs); cur != nil {
			cur.MarkNotApplicable()
		}

	case hooks.EventStepManual:
		if cur := executingStep(cs); cur != nil {
			cur.MarkPendingActuation()
		}

	case hooks.EventStepUnknown:
		c.config.Log.Debug("Runner reported an untracked step", "publicID", cs.PublicID)

	case hooks.EventShowPrompt:
		c.handleRunnerPrompt(ctx, cs, ev, runnerIn)

	case hooks.EventTestStop:
		if ev.Exception != "" {
			cs.RecordError(ev.Exception)
		}

	case hooks.EventStop:
		return true

	default:
		c.config.Log.Warn("Ignoring unknown hook event", "type", ev.Type)
	}
	return false
}

// handleRunnerPrompt relays a show_prompt event to the operator and writes
// the answer back into the runner's stdin, where the blocked script reads
// it. An unanswered prompt fails the active step.
func (c *Coordinator) handleRunnerPrompt(ctx context.Context, cs *types.CaseExecution, ev hooks.Event, runnerIn io.Writer) {
	response, err := c.config.Prompter.PromptText(
		ctx, ev.Message, ev.Placeholder, ev.DefaultValue, c.promptTimeout())
	if err != nil {
		if cur := executingStep(cs); cur != nil {
			cur.AppendFailure(fmt.Sprintf("prompt unanswered: %v", err))
		}
		return
	}
	c.config.Log.Info("Operator answered runner prompt", "response", response)
	if runnerIn == nil {
		return
	}
	if _, err := runnerIn.Write([]byte(response + "\n")); err != nil {
		c.config.Log.Warn("Failed to relay prompt response to runner", "error", err)
	}
}

// executingStep returns the step currently marked executing, or nil.
func executingStep(cs *types.CaseExecution) *types.StepExecution {
	for _, step := range cs.Steps {
		if step.State() == types.StateExecuting || step.State() == types.StatePendingActuation {
			return step
		}
	}
	return nil
}
