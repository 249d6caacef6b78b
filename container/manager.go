// Package container owns the lifecycle of the docker containers the test
// harness drives: create with readiness polling, idempotent destroy, exec
// and tar-based file transfer.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/ethereum/go-ethereum/log"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/project-chip/certification-tool-backend-sub001/metrics"
)

const (
	// DefaultBringUpTimeout bounds how long a container may take to reach
	// the running state before Create gives up and removes it.
	DefaultBringUpTimeout = 5 * time.Second
	// DefaultPollInterval is the readiness re-query interval.
	DefaultPollInterval = 200 * time.Millisecond
)

// ErrContainerStartTimeout is returned by Create when the container did not
// reach the running state within the bring-up timeout. The partial container
// is destroyed before the error is returned.
var ErrContainerStartTimeout = errors.New("container did not start before timeout")

// API is the slice of the docker SDK the manager uses. The concrete docker
// client satisfies it; tests substitute a fake.
type API interface {
	ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options dockercontainer.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options dockercontainer.RemoveOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options dockercontainer.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options dockercontainer.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (dockercontainer.ExecInspect, error)
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, dockercontainer.PathStat, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options dockercontainer.CopyToContainerOptions) error
}

// Handle references one managed container.
type Handle struct {
	ID    string
	Name  string
	Image string
	Alive bool
}

// CreateParams carries the subset of docker run options the harness uses.
type CreateParams struct {
	Name        string
	Cmd         []string
	Env         []string
	Binds       []string
	NetworkMode string
	Privileged  bool
}

// Config holds manager configuration.
type Config struct {
	Log            log.Logger
	BringUpTimeout time.Duration
	PollInterval   time.Duration
}

// Manager creates, monitors and destroys containers for one docker runtime.
// All calls are synchronous docker API round trips; callers are expected to
// invoke them from a worker goroutine, never from a connection handler.
type Manager struct {
	api API
	cfg Config
}

// NewManager creates a manager on top of an API implementation.
func NewManager(api API, cfg Config) *Manager {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.BringUpTimeout == 0 {
		cfg.BringUpTimeout = DefaultBringUpTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Manager{api: api, cfg: cfg}
}

// NewEnvManager creates a manager connected to the docker daemon configured
// in the environment.
func NewEnvManager(cfg Config) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewManager(cli, cfg), nil
}

// Create starts a container from the image and waits for it to report
// running, polling every PollInterval up to BringUpTimeout. On timeout the
// partial container is destroyed and ErrContainerStartTimeout returned.
func (m *Manager) Create(ctx context.Context, image string, params CreateParams) (*Handle, error) {
	resp, err := m.api.ContainerCreate(ctx,
		&dockercontainer.Config{
			Image: image,
			Cmd:   params.Cmd,
			Env:   params.Env,
		},
		&dockercontainer.HostConfig{
			Binds:       params.Binds,
			NetworkMode: dockercontainer.NetworkMode(params.NetworkMode),
			Privileged:  params.Privileged,
		},
		&network.NetworkingConfig{}, nil, params.Name)
	if err != nil {
		metrics.RecordContainerError("create")
		return nil, fmt.Errorf("failed to create container from image %s: %w", image, err)
	}

	handle := &Handle{ID: resp.ID, Name: params.Name, Image: image}

	if err := m.api.ContainerStart(ctx, handle.ID, dockercontainer.StartOptions{}); err != nil {
		m.Destroy(ctx, handle)
		metrics.RecordContainerError("start")
		return nil, fmt.Errorf("failed to start container %s: %w", handle.ID, err)
	}

	if err := m.waitReady(ctx, handle); err != nil {
		m.Destroy(ctx, handle)
		return nil, err
	}

	handle.Alive = true
	metrics.RecordContainerStarted()
	m.cfg.Log.Info("Container running", "image", image, "id", handle.ID)
	return handle, nil
}

func (m *Manager) waitReady(ctx context.Context, handle *Handle) error {
	deadline := time.NewTimer(m.cfg.BringUpTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(m.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			m.cfg.Log.Error("Container start timed out", "id", handle.ID, "timeout", m.cfg.BringUpTimeout)
			metrics.RecordContainerError("start_timeout")
			return ErrContainerStartTimeout
		case <-tick.C:
			if m.IsRunning(ctx, handle) {
				return nil
			}
		}
	}
}

// Destroy kills (when running) and removes the container. It is idempotent:
// destroying an already removed container succeeds.
func (m *Manager) Destroy(ctx context.Context, handle *Handle) {
	if handle == nil {
		return
	}
	if m.IsRunning(ctx, handle) {
		if err := m.api.ContainerKill(ctx, handle.ID, "KILL"); err != nil && !errdefs.IsNotFound(err) {
			m.cfg.Log.Warn("Failed to kill container", "id", handle.ID, "err", err)
		}
	}
	if err := m.api.ContainerRemove(ctx, handle.ID, dockercontainer.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !errdefs.IsNotFound(err) {
		m.cfg.Log.Warn("Failed to remove container", "id", handle.ID, "err", err)
		metrics.RecordContainerError("remove")
	}
	handle.Alive = false
}

// IsRunning re-queries the live container status. The result is never
// cached; a destroyed or unknown container reports false.
func (m *Manager) IsRunning(ctx context.Context, handle *Handle) bool {
	if handle == nil {
		return false
	}
	inspect, err := m.api.ContainerInspect(ctx, handle.ID)
	if err != nil {
		return false
	}
	return inspect.State != nil && inspect.State.Running
}

// FindByName returns a handle for an existing container with the given
// name, or nil when none exists.
func (m *Manager) FindByName(ctx context.Context, name string) *Handle {
	inspect, err := m.api.ContainerInspect(ctx, name)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			m.cfg.Log.Warn("Container lookup failed", "name", name, "err", err)
		}
		return nil
	}
	return &Handle{
		ID:    inspect.ID,
		Name:  name,
		Image: inspect.Config.Image,
		Alive: inspect.State != nil && inspect.State.Running,
	}
}

// GetWorkingDir looks up the container's configured working directory.
func (m *Manager) GetWorkingDir(ctx context.Context, handle *Handle) (string, error) {
	inspect, err := m.api.ContainerInspect(ctx, handle.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container %s: %w", handle.ID, err)
	}
	if inspect.Config == nil {
		return "", nil
	}
	return inspect.Config.WorkingDir, nil
}

// GetMountSource finds the mount source for a mount destination inside the
// container, or "" when no mount matches.
func (m *Manager) GetMountSource(ctx context.Context, handle *Handle, destination string) (string, error) {
	inspect, err := m.api.ContainerInspect(ctx, handle.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container %s: %w", handle.ID, err)
	}
	for _, mount := range inspect.Mounts {
		if mount.Destination == destination {
			return mount.Source, nil
		}
	}
	return "", nil
}
