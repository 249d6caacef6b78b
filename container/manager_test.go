package container

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory stand-in for the docker daemon.
type fakeAPI struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
	nextID     int

	// neverReady keeps created containers out of the running state so the
	// readiness poll can time out.
	neverReady bool

	killCalls   int
	removeCalls int
}

type fakeContainer struct {
	id      string
	image   string
	running bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{containers: map[string]*fakeContainer{}}
}

func (f *fakeAPI) ContainerCreate(_ context.Context, config *dockercontainer.Config, _ *dockercontainer.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (dockercontainer.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := name
	if id == "" {
		id = string(rune('a' + f.nextID))
	}
	f.containers[id] = &fakeContainer{id: id, image: config.Image}
	return dockercontainer.CreateResponse{ID: id}, nil
}

func (f *fakeAPI) ContainerStart(_ context.Context, id string, _ dockercontainer.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok && !f.neverReady {
		c.running = true
	}
	return nil
}

func (f *fakeAPI) ContainerInspect(_ context.Context, id string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return types.ContainerJSON{}, notFoundError{}
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:    c.id,
			State: &types.ContainerState{Running: c.running},
		},
		Config: &dockercontainer.Config{Image: c.image},
	}, nil
}

func (f *fakeAPI) ContainerKill(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killCalls++
	if c, ok := f.containers[id]; ok {
		c.running = false
		return nil
	}
	return notFoundError{}
}

func (f *fakeAPI) ContainerRemove(_ context.Context, id string, _ dockercontainer.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	if _, ok := f.containers[id]; !ok {
		return notFoundError{}
	}
	delete(f.containers, id)
	return nil
}

func (f *fakeAPI) ContainerExecCreate(_ context.Context, _ string, _ dockercontainer.ExecOptions) (types.IDResponse, error) {
	return types.IDResponse{ID: "exec-1"}, nil
}

func (f *fakeAPI) ContainerExecAttach(_ context.Context, _ string, _ dockercontainer.ExecStartOptions) (types.HijackedResponse, error) {
	return types.HijackedResponse{}, nil
}

func (f *fakeAPI) ContainerExecInspect(_ context.Context, execID string) (dockercontainer.ExecInspect, error) {
	return dockercontainer.ExecInspect{ExecID: execID, ExitCode: 0, Running: false}, nil
}

func (f *fakeAPI) CopyFromContainer(_ context.Context, _ string, _ string) (io.ReadCloser, dockercontainer.PathStat, error) {
	return nil, dockercontainer.PathStat{}, errors.New("not implemented")
}

func (f *fakeAPI) CopyToContainer(_ context.Context, _ string, _ string, _ io.Reader, _ dockercontainer.CopyToContainerOptions) error {
	return errors.New("not implemented")
}

// notFoundError satisfies errdefs.IsNotFound.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }
func (notFoundError) NotFound()     {}

var _ API = (*fakeAPI)(nil)

func testConfig() Config {
	return Config{
		BringUpTimeout: 200 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	}
}

func TestCreateRunsContainer(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig())

	handle, err := m.Create(context.Background(), "test-image:latest", CreateParams{Name: "dut"})
	require.NoError(t, err)
	assert.Equal(t, "dut", handle.ID)
	assert.True(t, handle.Alive)
	assert.True(t, m.IsRunning(context.Background(), handle))
}

func TestCreateTimesOutAndRemovesContainer(t *testing.T) {
	api := newFakeAPI()
	api.neverReady = true
	m := NewManager(api, testConfig())

	handle, err := m.Create(context.Background(), "test-image:latest", CreateParams{Name: "dut"})
	require.ErrorIs(t, err, ErrContainerStartTimeout)
	assert.Nil(t, handle)

	// The partial container must have been removed.
	assert.Equal(t, 1, api.removeCalls)
	stale := &Handle{ID: "dut"}
	assert.False(t, m.IsRunning(context.Background(), stale))
}

func TestDestroyIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig())

	handle, err := m.Create(context.Background(), "test-image:latest", CreateParams{Name: "dut"})
	require.NoError(t, err)

	m.Destroy(context.Background(), handle)
	assert.False(t, handle.Alive)
	assert.False(t, m.IsRunning(context.Background(), handle))

	removesAfterFirst := api.removeCalls
	m.Destroy(context.Background(), handle)
	assert.Equal(t, removesAfterFirst+1, api.removeCalls, "second destroy still calls remove")
	assert.False(t, m.IsRunning(context.Background(), handle), "observable state unchanged")
}

func TestDestroyKillsRunningContainer(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig())

	handle, err := m.Create(context.Background(), "test-image:latest", CreateParams{Name: "dut"})
	require.NoError(t, err)

	m.Destroy(context.Background(), handle)
	assert.Equal(t, 1, api.killCalls)
}

func TestIsRunningRequeriesStatus(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig())

	handle, err := m.Create(context.Background(), "test-image:latest", CreateParams{Name: "dut"})
	require.NoError(t, err)
	require.True(t, m.IsRunning(context.Background(), handle))

	// Stop the container behind the manager's back; IsRunning must notice.
	api.mu.Lock()
	api.containers["dut"].running = false
	api.mu.Unlock()
	assert.False(t, m.IsRunning(context.Background(), handle))
}

func TestFindByName(t *testing.T) {
	api := newFakeAPI()
	m := NewManager(api, testConfig())

	assert.Nil(t, m.FindByName(context.Background(), "missing"))

	_, err := m.Create(context.Background(), "test-image:latest", CreateParams{Name: "dut"})
	require.NoError(t, err)
	found := m.FindByName(context.Background(), "dut")
	require.NotNil(t, found)
	assert.True(t, found.Alive)
	assert.Equal(t, "test-image:latest", found.Image)
}

func TestErrdefsCompatibility(t *testing.T) {
	assert.True(t, errdefs.IsNotFound(notFoundError{}))
}
