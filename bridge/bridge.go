// Package bridge sends shell-equivalent commands into the managed test
// runner container and exposes their output either buffered or as a lazy
// line stream.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/ethereum/go-ethereum/log"

	"github.com/project-chip/certification-tool-backend-sub001/container"
	thtypes "github.com/project-chip/certification-tool-backend-sub001/types"
)

// ErrNotRunning is returned when a command is sent before Start, or after
// the bridge container went away.
var ErrNotRunning = errors.New("runner container is not running")

// ErrExitCodeUnresolved is returned by ExecExitCode while the command is
// still running (a streamed command must be drained first).
var ErrExitCodeUnresolved = errors.New("exec still running, exit code not resolved")

// UnresolvedExitCode is the placeholder exit code of a streamed command
// whose stream has not been drained yet.
const UnresolvedExitCode = -1

// PICSFilePath is where the enabled PICS set is materialized inside the
// runner container.
const PICSFilePath = "/var/tmp/pics"

// ContainerRuntime is the container manager surface the bridge drives.
type ContainerRuntime interface {
	Create(ctx context.Context, image string, params container.CreateParams) (*container.Handle, error)
	Destroy(ctx context.Context, handle *container.Handle)
	IsRunning(ctx context.Context, handle *container.Handle) bool
	FindByName(ctx context.Context, name string) *container.Handle
	ExecStart(ctx context.Context, handle *container.Handle, cfg container.ExecConfig) (string, types.HijackedResponse, error)
	ExecExitCode(ctx context.Context, execID string) (int, bool, error)
}

// Config holds bridge configuration.
type Config struct {
	Log           log.Logger
	ContainerName string
	Image         string
	Params        container.CreateParams
}

// CommandOptions modify how a command is executed in the container.
type CommandOptions struct {
	Prefix string
	Stream bool
	Socket bool
	Stdin  bool
	Detach bool
}

// ExecResult is the outcome of SendCommand. For streamed commands Output is
// nil, Stream carries the lazy line sequence and ExitCode stays
// UnresolvedExitCode until the stream is drained and ExecExitCode called.
// Input is the exec's stdin, non-nil only for streamed commands started
// with Stdin.
type ExecResult struct {
	ExecID   string
	ExitCode int
	Output   []byte
	Stream   *LineStream
	Input    io.Writer
}

// Bridge manages one runner container and executes commands inside it.
type Bridge struct {
	log        log.Logger
	containers ContainerRuntime
	cfg        Config

	mu          sync.Mutex
	handle      *container.Handle
	picsApplied bool
	destroyed   bool
}

// New creates a bridge on top of a container runtime.
func New(containers ContainerRuntime, cfg Config) *Bridge {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Bridge{log: cfg.Log, containers: containers, cfg: cfg}
}

// Start brings up the runner container. A running container with the
// configured name is reused; a stale stopped one is destroyed first.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = false

	if b.handle != nil && b.containers.IsRunning(ctx, b.handle) {
		b.log.Info("Runner container already running, reusing", "id", b.handle.ID)
		return nil
	}

	if existing := b.containers.FindByName(ctx, b.cfg.ContainerName); existing != nil {
		if existing.Alive {
			b.log.Info("Reusing running runner container", "id", existing.ID)
			b.handle = existing
			return nil
		}
		b.log.Info("Destroying stale runner container", "id", existing.ID)
		b.containers.Destroy(ctx, existing)
	}

	params := b.cfg.Params
	params.Name = b.cfg.ContainerName
	handle, err := b.containers.Create(ctx, b.cfg.Image, params)
	if err != nil {
		return fmt.Errorf("failed to start runner container: %w", err)
	}
	b.handle = handle
	return nil
}

// IsRunning reports the live status of the bridge container.
func (b *Bridge) IsRunning(ctx context.Context) bool {
	b.mu.Lock()
	handle := b.handle
	b.mu.Unlock()
	return handle != nil && b.containers.IsRunning(ctx, handle)
}

// SendCommand composes "<prefix> <cmd>" and executes it inside the runner
// container.
func (b *Bridge) SendCommand(ctx context.Context, cmd string, opts CommandOptions) (*ExecResult, error) {
	b.mu.Lock()
	handle := b.handle
	b.mu.Unlock()
	if handle == nil {
		return nil, ErrNotRunning
	}

	full := cmd
	if opts.Prefix != "" {
		full = opts.Prefix + " " + cmd
	}
	b.log.Info("Sending command to runner container", "cmd", full)

	// Match the docker shell-exec convention so quoting in composed
	// commands survives.
	execID, attach, err := b.containers.ExecStart(ctx, handle, container.ExecConfig{
		Cmd:    []string{"/bin/sh", "-c", full},
		Stdin:  opts.Stdin,
		Detach: opts.Detach,
		Socket: opts.Socket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exec command: %w", err)
	}

	if opts.Detach {
		if attach.Conn != nil {
			attach.Close()
		}
		return &ExecResult{ExecID: execID, ExitCode: UnresolvedExitCode}, nil
	}

	if opts.Stream {
		res := &ExecResult{
			ExecID:   execID,
			ExitCode: UnresolvedExitCode,
			Stream:   newLineStream(attach),
		}
		if opts.Stdin && attach.Conn != nil {
			res.Input = attach.Conn
		}
		return res, nil
	}

	var buf bytes.Buffer
	if attach.Reader != nil {
		if _, err := stdcopy.StdCopy(&buf, &buf, attach.Reader); err != nil {
			if attach.Conn != nil {
				attach.Close()
			}
			return nil, fmt.Errorf("failed to read command output: %w", err)
		}
	}
	if attach.Conn != nil {
		attach.Close()
	}

	exitCode, err := b.ExecExitCode(ctx, execID)
	if err != nil {
		return nil, err
	}
	return &ExecResult{ExecID: execID, ExitCode: exitCode, Output: buf.Bytes()}, nil
}

// ExecExitCode resolves the exit code of a finished exec instance.
func (b *Bridge) ExecExitCode(ctx context.Context, execID string) (int, error) {
	code, done, err := b.containers.ExecExitCode(ctx, execID)
	if err != nil {
		return UnresolvedExitCode, err
	}
	if !done {
		return UnresolvedExitCode, ErrExitCodeUnresolved
	}
	return code, nil
}

// SetPICS materializes the enabled PICS set as a properties file inside the
// container, enabling PICS-filtered execution for the suite.
func (b *Bridge) SetPICS(ctx context.Context, pics thtypes.PICS) error {
	items := pics.Enabled()
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = item + "=1"
	}
	cmd := fmt.Sprintf("printf '%s\\n' > %s", strings.Join(lines, "\\n"), PICSFilePath)

	result, err := b.SendCommand(ctx, cmd, CommandOptions{})
	if err != nil {
		return fmt.Errorf("failed to create PICS file: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("creating PICS file failed with exit code %d", result.ExitCode)
	}
	b.mu.Lock()
	b.picsApplied = true
	b.mu.Unlock()
	return nil
}

// ResetPICSState clears the applied-PICS flag so following commands run
// without a PICS argument.
func (b *Bridge) ResetPICSState() {
	b.mu.Lock()
	b.picsApplied = false
	b.mu.Unlock()
}

// PICSApplied reports whether a PICS file was created for the current
// container.
func (b *Bridge) PICSApplied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.picsApplied
}

// Destroy tears down the runner container. Safe to call more than once.
func (b *Bridge) Destroy(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.picsApplied = false
	if b.handle != nil {
		b.containers.Destroy(ctx, b.handle)
		b.handle = nil
	}
}
