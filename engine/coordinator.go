// Package engine drives test runs: strictly sequential suite, case and step
// execution, commissioning retries, hook event folding and cancellation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/project-chip/certification-tool-backend-sub001/hooks"
	"github.com/project-chip/certification-tool-backend-sub001/metrics"
	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// DefaultPromptTimeout bounds operator prompt round trips.
const DefaultPromptTimeout = 60 * time.Second

// Config contains coordinator configuration
type Config struct {
	Log log.Logger

	// NewBridge builds the runner container handle for one suite.
	NewBridge func(suite *types.SuiteDeclaration) (Bridge, error)
	// NewCommissioner wraps a bridge into the commissioning collaborator.
	// Defaults to the chip-tool commissioner with Pairing.
	NewCommissioner func(b Bridge) Commissioner

	Prompter Prompter
	Hooks    *hooks.Channel
	Store    RunStore
	Updates  UpdateSink
	// Logs receives runner output lines for streaming to operators.
	Logs func(level, message string)

	Pairing PairingConfig

	// CertificationMode aborts the run when a mandatory suite fails.
	CertificationMode bool

	PromptTimeout    time.Duration
	EventWaitTimeout time.Duration
}

// Coordinator executes one run at a time. It owns no global state; every
// collaborator is injected through Config.
type Coordinator struct {
	config    Config
	executors map[types.Classification]caseExecutor

	cancelled atomic.Bool
	mu        sync.Mutex
	cancelRun context.CancelFunc
}

// NewCoordinator creates a new coordinator instance
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.NewBridge == nil {
		return nil, fmt.Errorf("bridge factory is required")
	}
	if cfg.Prompter == nil {
		return nil, fmt.Errorf("prompter is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hooks.NewChannel(0)
	}
	if cfg.NewCommissioner == nil {
		pairing := cfg.Pairing
		cfg.NewCommissioner = func(b Bridge) Commissioner {
			return NewChipToolCommissioner(b, pairing)
		}
	}

	c := &Coordinator{config: cfg}
	c.executors = map[types.Classification]caseExecutor{
		types.ClassManual:        c.runManualCase,
		types.ClassAutomated:     c.runAutomatedCase,
		types.ClassSemiAutomated: c.runAutomatedCase,
		types.ClassSimulated:     c.runSimulatedCase,
		types.ClassCommissioning: c.runCommissioningCase,
	}
	return c, nil
}

// Run executes the whole run hierarchy sequentially. It returns an error
// only for fatal contract violations; test failures and cancellations are
// reported through the hierarchy state.
func (c *Coordinator) Run(ctx context.Context, run *types.TestRun) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancelRun = cancel
	c.mu.Unlock()
	c.cancelled.Store(false)

	start := time.Now()
	run.Subscribe(c.observe(ctx))
	c.config.Log.Info("Starting test run", "id", run.ID, "title", run.Title, "suites", len(run.Suites))
	run.MarkExecuting()

	var fatal error
	abort := false
	for _, suite := range run.Suites {
		if abort || ctx.Err() != nil {
			break
		}
		if err := c.runSuite(ctx, suite); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			fatal = err
			break
		}
		if c.config.CertificationMode && suite.Declaration.Mandatory && failedState(suite.State()) {
			c.notifyMandatoryFailure(ctx, suite)
			abort = true
		}
	}

	if fatal == nil && (c.cancelled.Load() || ctx.Err() != nil) {
		c.config.Hooks.Drain()
		run.Cancel()
	}
	if abort {
		run.Cancel()
	}
	run.MarkCompleted()

	metrics.RecordRunCompleted(strconv.Itoa(run.ID), run.State(), time.Since(start))
	c.config.Log.Info("Test run finished", "id", run.ID, "state", run.State(), "duration", time.Since(start))
	return fatal
}

// Cancel aborts the in-flight run. Queued hook events are discarded and
// remaining hierarchy nodes fold to cancelled.
func (c *Coordinator) Cancel() {
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	c.config.Log.Info("Cancelling test run")
	c.mu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.mu.Unlock()
}

func (c *Coordinator) runSuite(ctx context.Context, suite *types.SuiteExecution) error {
	c.config.Log.Info("Running test suite", "publicID", suite.PublicID, "cases", len(suite.Cases))
	suite.MarkExecuting()

	env, err := c.setupSuite(ctx, suite)
	if err != nil {
		c.cleanupSuite(ctx, env)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.config.Log.Error("Suite setup failed", "publicID", suite.PublicID, "error", err)
		for _, cs := range suite.Cases {
			cs.MarkNotApplicable()
		}
		suite.RecordError()

		// Setup failures fold into the suite state and the run moves on.
		// Only an uninterpretable prompt round trip aborts the run.
		var contractErr *PromptContractError
		if errors.As(err, &contractErr) {
			return err
		}
		return nil
	}

	for _, cs := range suite.Cases {
		if ctx.Err() != nil {
			break
		}
		c.runCase(ctx, env, cs)
	}

	c.cleanupSuite(ctx, env)
	if ctx.Err() != nil {
		// run.Cancel folds the suite; completing it here would race the
		// cancellation fold with a partial state.
		return ctx.Err()
	}
	suite.MarkCompleted()
	return nil
}

// setupSuite prepares the per-suite environment: runner container, PICS
// state and, for controller-driven suites, a commissioned device.
func (c *Coordinator) setupSuite(ctx context.Context, suite *types.SuiteExecution) (*suiteEnv, error) {
	env := &suiteEnv{declaration: suite.Declaration}
	if suite.Declaration.Classification == types.ClassManual {
		return env, nil
	}

	b, err := c.config.NewBridge(suite.Declaration)
	if err != nil {
		return env, err
	}
	env.bridge = b
	if err := b.Start(ctx); err != nil {
		return env, err
	}

	pics := suitePICS(suite.Declaration)
	if pics.HasEnabled() {
		c.config.Log.Info("Applying PICS to runner container", "items", len(pics.Enabled()))
		if err := b.SetPICS(ctx, pics); err != nil {
			return env, err
		}
	} else {
		b.ResetPICSState()
	}

	if suite.Declaration.Classification != types.ClassSimulated {
		commissioner := c.config.NewCommissioner(b)
		c.config.Log.Info("Commissioning DUT", "suite", suite.PublicID)
		if err := c.commissionWithRetries(ctx, commissioner); err != nil {
			return env, err
		}
		env.commissioner = commissioner
		env.commissioned = true
	}
	return env, nil
}

// cleanupSuite releases suite resources. The runner container is always
// destroyed, also on failure paths; unpairing happens only after a
// successful commissioning.
func (c *Coordinator) cleanupSuite(ctx context.Context, env *suiteEnv) {
	if env == nil {
		return
	}
	// Container release must survive run cancellation.
	ctx = context.WithoutCancel(ctx)
	if env.commissioned && env.commissioner != nil {
		if err := env.commissioner.Unpair(ctx); err != nil {
			c.config.Log.Warn("Failed to unpair DUT", "error", err)
		}
	}
	if env.bridge != nil {
		env.bridge.Destroy(ctx)
	}
}

func (c *Coordinator) runCase(ctx context.Context, env *suiteEnv, cs *types.CaseExecution) {
	c.config.Log.Info("Running test case", "publicID", cs.PublicID,
		"classification", cs.Declaration.Classification)
	cs.MarkExecuting()

	exec := c.executorFor(cs.Declaration.Classification)
	if err := exec(ctx, env, cs); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.config.Log.Error("Test case errored", "publicID", cs.PublicID, "error", err)
		if step := cs.CurrentStep(); step != nil {
			step.RecordError(err.Error())
			for _, remaining := range cs.Steps {
				if !remaining.Completed() {
					remaining.MarkNotApplicable()
				}
			}
		} else {
			cs.RecordError(err.Error())
		}
	}
	cs.MarkCompleted()
}

// notifyMandatoryFailure tells the operator a mandatory suite failed and
// that the rest of the run is aborted.
func (c *Coordinator) notifyMandatoryFailure(ctx context.Context, suite *types.SuiteExecution) {
	c.config.Log.Warn("Mandatory suite failed, aborting certification run", "publicID", suite.PublicID)
	message := fmt.Sprintf(
		"At least one of the mandatory test cases failed while running in certification mode.\n"+
			"The remaining tests will be cancelled. (suite: %s)", suite.PublicID)
	if _, err := c.config.Prompter.PromptOptions(ctx, message, []string{OptionOK}, c.promptTimeout()); err != nil {
		c.config.Log.Warn("Mandatory failure notification unanswered", "error", err)
	}
}

// observe wires the hierarchy observer: one persistence write, one update
// notification and one metric per state transition.
func (c *Coordinator) observe(ctx context.Context) types.Observer {
	return func(node any) {
		if c.config.Updates != nil {
			c.config.Updates(node)
		}
		store := c.config.Store
		var err error
		switch n := node.(type) {
		case *types.TestRun:
			metrics.RecordStateTransition("run", n.State())
			if store != nil {
				err = store.SaveRun(ctx, n)
			}
		case *types.SuiteExecution:
			metrics.RecordStateTransition("suite", n.State())
			if store != nil {
				err = store.SaveSuite(ctx, n)
			}
		case *types.CaseExecution:
			metrics.RecordStateTransition("case", n.State())
			if store != nil {
				err = store.SaveCase(ctx, n)
			}
		case *types.StepExecution:
			metrics.RecordStateTransition("step", n.State())
			if store != nil {
				err = store.SaveStep(ctx, n)
			}
		}
		if err != nil {
			c.config.Log.Warn("Failed to persist execution state", "error", err)
		}
	}
}

// suitePICS is the union of the enabled PICS items of all cases in a suite.
func suitePICS(decl *types.SuiteDeclaration) types.PICS {
	union := make(types.PICS)
	for _, cs := range decl.Cases {
		for item, enabled := range cs.PICS {
			if enabled {
				union[item] = true
			}
		}
	}
	return union
}

func failedState(s types.TestState) bool {
	return s == types.StateFailed || s == types.StateError
}

func (c *Coordinator) promptTimeout() time.Duration {
	if c.config.PromptTimeout > 0 {
		return c.config.PromptTimeout
	}
	return DefaultPromptTimeout
}

func (c *Coordinator) eventWaitTimeout() time.Duration {
	if c.config.EventWaitTimeout > 0 {
		return c.config.EventWaitTimeout
	}
	return DefaultEventWaitTimeout
}
