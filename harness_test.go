package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/project-chip/certification-tool-backend-sub001/socket"
)

const harnessFixtureYAML = `name: "[TC-ACE-1.1] Access Control Cluster"
tests:
  - label: "Read the ACL attribute"
    command: "readAttribute"
`

func writeFixtureSuite(t *testing.T, testsDir, collection, suite string) {
	t.Helper()
	dir := filepath.Join(testsDir, collection, suite)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TC-ACE-1.1.yaml"), []byte(harnessFixtureYAML), 0o644))
}

func newHarnessConfig(t *testing.T, testsDir string) *Config {
	t.Helper()
	return &Config{
		TestsDir:      testsDir,
		DockerImage:   "runner:test",
		ContainerName: "th-test-runner",
		NetworkMode:   "host",
		RunTitle:      "unit test run",
		RunOnce:       true,
		Log:           log.New(),
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "v0", socket.NewHub(socket.HubConfig{Log: log.New()}), func(error) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "config is required")
}

func TestNewRequiresHub(t *testing.T) {
	cfg := newHarnessConfig(t, t.TempDir())
	_, err := New(context.Background(), cfg, "v0", nil, func(error) {})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection hub is required")
}

func TestNewDiscoversSuites(t *testing.T) {
	testsDir := t.TempDir()
	writeFixtureSuite(t, testsDir, "SDKYAMLTests", "FirstChipToolSuite")
	writeFixtureSuite(t, testsDir, "ManualTests", "ManualSuite")

	cfg := newHarnessConfig(t, testsDir)
	hub := socket.NewHub(socket.HubConfig{Log: log.New()})
	h, err := New(context.Background(), cfg, "v0", hub, func(error) {})
	require.NoError(t, err)
	defer h.hooksServer.Close()

	require.Len(t, h.selectSuites(), 2)

	cfg.Collections = []string{"ManualTests"}
	suites := h.selectSuites()
	require.Len(t, suites, 1)
	require.Equal(t, "ManualTests", suites[0].CollectionID)
}

func TestResultIsNilBeforeFirstRun(t *testing.T) {
	testsDir := t.TempDir()
	writeFixtureSuite(t, testsDir, "SDKYAMLTests", "FirstChipToolSuite")

	cfg := newHarnessConfig(t, testsDir)
	hub := socket.NewHub(socket.HubConfig{Log: log.New()})
	h, err := New(context.Background(), cfg, "v0", hub, func(error) {})
	require.NoError(t, err)
	defer h.hooksServer.Close()

	require.Nil(t, h.Result())
}
