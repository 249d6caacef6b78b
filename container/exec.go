package container

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
)

// ExecConfig describes one command execution inside a running container.
type ExecConfig struct {
	Cmd    []string
	Stdin  bool
	Detach bool
	Socket bool
}

// ExecStart creates and attaches an exec instance for the command. The
// returned hijacked response carries the multiplexed stdout/stderr stream;
// the caller owns closing it. For detached commands the response reader is
// not used.
func (m *Manager) ExecStart(ctx context.Context, handle *Handle, cfg ExecConfig) (string, types.HijackedResponse, error) {
	created, err := m.api.ContainerExecCreate(ctx, handle.ID, dockercontainer.ExecOptions{
		Cmd:          cfg.Cmd,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  cfg.Stdin,
		Detach:       cfg.Detach,
	})
	if err != nil {
		return "", types.HijackedResponse{}, fmt.Errorf("failed to create exec in container %s: %w", handle.ID, err)
	}

	attach, err := m.api.ContainerExecAttach(ctx, created.ID, dockercontainer.ExecStartOptions{Detach: cfg.Detach})
	if err != nil {
		return "", types.HijackedResponse{}, fmt.Errorf("failed to attach exec %s: %w", created.ID, err)
	}
	return created.ID, attach, nil
}

// ExecExitCode inspects a finished exec instance and returns its exit code.
// The exit code is undefined while the command is still running; the second
// return value reports whether the command has finished.
func (m *Manager) ExecExitCode(ctx context.Context, execID string) (int, bool, error) {
	inspect, err := m.api.ContainerExecInspect(ctx, execID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to inspect exec %s: %w", execID, err)
	}
	return inspect.ExitCode, !inspect.Running, nil
}
