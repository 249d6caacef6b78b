// Package harness wires the certification backend together: test discovery,
// the execution coordinator, the runner hook channel and the operator
// connection hub, driven by a run scheduler.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/project-chip/certification-tool-backend-sub001/bridge"
	"github.com/project-chip/certification-tool-backend-sub001/container"
	"github.com/project-chip/certification-tool-backend-sub001/engine"
	"github.com/project-chip/certification-tool-backend-sub001/exitcodes"
	"github.com/project-chip/certification-tool-backend-sub001/hooks"
	"github.com/project-chip/certification-tool-backend-sub001/registry"
	"github.com/project-chip/certification-tool-backend-sub001/socket"
	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// Harness is the backend service: it discovers test declarations, schedules
// runs and executes them through the coordinator.
type Harness struct {
	ctx     context.Context
	config  *Config
	version string

	registry    *registry.Registry
	coordinator *engine.Coordinator
	hooksServer *hooks.Server
	hub         *socket.Hub
	logStream   *socket.LogStream
	scheduler   *IntervalScheduler

	runCounter atomic.Int64
	mu         sync.Mutex
	result     *types.TestRun

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New builds the harness and all its collaborators. The hub is created by
// the caller because the socket service owns its listener.
func New(ctx context.Context, config *Config, version string, hub *socket.Hub, shutdownCallback func(error)) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if hub == nil {
		return nil, errors.New("connection hub is required")
	}

	config.Log.Debug("Creating test harness with config",
		"testsDir", config.TestsDir,
		"image", config.DockerImage,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"certificationMode", config.CertificationMode)

	reg, err := registry.NewRegistry(registry.Config{
		Log:      config.Log,
		TestsDir: config.TestsDir,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	channel := hooks.NewChannel(0)
	hooksServer, err := hooks.NewServer(hooks.ServerConfig{
		Log:     config.Log,
		Address: config.HooksAddress,
	}, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to start hook event channel: %w", err)
	}

	containers, err := container.NewEnvManager(container.Config{Log: config.Log})
	if err != nil {
		hooksServer.Close()
		return nil, fmt.Errorf("failed to connect to docker: %w", err)
	}

	logStream := socket.NewLogStream(hub, 0)
	prompter := socket.NewPromptManager(config.Log, hub)

	newBridge := func(suite *types.SuiteDeclaration) (engine.Bridge, error) {
		return bridge.New(containers, bridge.Config{
			Log:           config.Log,
			ContainerName: config.ContainerName,
			Image:         config.DockerImage,
			Params: container.CreateParams{
				NetworkMode: config.NetworkMode,
				Privileged:  true,
				Env: []string{
					"TH_HOOKS_ADDR=" + hooksServer.Addr(),
					"TH_HOOKS_TOKEN=" + hooksServer.Token(),
				},
			},
		}), nil
	}

	coordinator, err := engine.NewCoordinator(engine.Config{
		Log:               config.Log,
		NewBridge:         newBridge,
		Prompter:          prompter,
		Hooks:             channel,
		Updates:           hub.BroadcastUpdate,
		Logs:              logStream.Append,
		Pairing:           config.Pairing,
		CertificationMode: config.CertificationMode,
		PromptTimeout:     config.PromptTimeout,
		EventWaitTimeout:  config.EventWaitTimeout,
	})
	if err != nil {
		hooksServer.Close()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	config.Log.Info("harness.New: created registry and coordinator",
		"collections", reg.Collections())

	h := &Harness{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		coordinator:      coordinator,
		hooksServer:      hooksServer,
		hub:              hub,
		logStream:        logStream,
		scheduler:        NewIntervalScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}
	h.scheduler.RegisterCallback(h.runTests)
	return h, nil
}

// Start runs the certification tests on the configured schedule.
func (h *Harness) Start(ctx context.Context) error {
	// Panics escaping the run are runtime errors, exit code 2
	defer func() {
		if r := recover(); r != nil {
			h.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	h.ctx = ctx
	go h.logStream.Run(ctx)

	if err := h.scheduler.Start(ctx); err != nil {
		h.config.Log.Error("Runtime error running tests", "error", err)
		if IsRuntimeError(err) {
			return err
		}
		return NewRuntimeError(err)
	}

	if h.config.RunOnce {
		h.config.Log.Info("Tests completed, exiting (run-once mode)")
		if run := h.Result(); run != nil && runFailed(run.State()) {
			return NewTestFailureError(summarizeRun(run))
		}
		go func() {
			h.shutdownCallback(nil)
		}()
	}
	return nil
}

// runTests executes one full test run and reports the results.
func (h *Harness) runTests() error {
	suites := h.selectSuites()
	if len(suites) == 0 {
		return NewRuntimeError(errors.New("no test suites discovered"))
	}

	runID := int(h.runCounter.Add(1))
	run := types.NewTestRun(runID, h.config.RunTitle, h.config.Operator, suites)
	h.mu.Lock()
	h.result = run
	h.mu.Unlock()

	h.config.Log.Info("Starting test run", "run_id", runID, "suites", len(suites))
	started := time.Now()
	if err := h.coordinator.Run(h.ctx, run); err != nil {
		h.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	h.logStream.Flush()

	h.printResultsTable(run, time.Since(started))
	h.config.Log.Info("Test run completed", "run_id", runID, "state", run.State())
	return nil
}

// selectSuites resolves the configured collections to suite declarations.
// An empty collection list selects everything the registry discovered.
func (h *Harness) selectSuites() []*types.SuiteDeclaration {
	if len(h.config.Collections) == 0 {
		return h.registry.Suites()
	}
	var suites []*types.SuiteDeclaration
	for _, collection := range h.config.Collections {
		suites = append(suites, h.registry.SuitesForCollection(collection)...)
	}
	return suites
}

// Result returns the most recent test run, or nil before the first run.
func (h *Harness) Result() *types.TestRun {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Stop stops the harness: the current run is cancelled and the hook channel
// closed.
func (h *Harness) Stop(ctx context.Context) error {
	h.config.Log.Info("Stopping test harness")

	if h.scheduler.Stopped() {
		h.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	h.coordinator.Cancel()
	if err := h.scheduler.Stop(); err != nil {
		return err
	}
	h.hooksServer.Close()

	h.config.Log.Info("Test harness stopped successfully")
	return nil
}

// Stopped returns true if the harness is stopped.
func (h *Harness) Stopped() bool {
	return h.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (h *Harness) WaitForShutdown(ctx context.Context) error {
	return h.scheduler.WaitForShutdown(ctx)
}
