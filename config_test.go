package harness

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/project-chip/certification-tool-backend-sub001/engine"
	"github.com/project-chip/certification-tool-backend-sub001/flags"
)

// parseConfig runs NewConfig through a real cli invocation.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var cfg *Config
	var cfgErr error
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, cfgErr = NewConfig(ctx, log.New(), ctx.String(flags.TestsDir.Name))
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"app"}, args...)))
	return cfg, cfgErr
}

func TestNewConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseConfig(t, "--tests-dir", dir)
	require.NoError(t, err)

	require.Equal(t, dir, cfg.TestsDir)
	require.True(t, cfg.RunOnce)
	require.Equal(t, engine.PairingModeOnNetwork, cfg.Pairing.Mode)
	require.Equal(t, "20202021", cfg.Pairing.SetupCode)
	require.Equal(t, 60*time.Second, cfg.PromptTimeout)
	require.False(t, cfg.CertificationMode)
}

func TestNewConfigRunInterval(t *testing.T) {
	cfg, err := parseConfig(t, "--tests-dir", t.TempDir(), "--run-interval", "30m")
	require.NoError(t, err)
	require.False(t, cfg.RunOnce)
	require.Equal(t, 30*time.Minute, cfg.RunInterval)
}

func TestNewConfigRejectsUnknownPairingMode(t *testing.T) {
	_, err := parseConfig(t, "--tests-dir", t.TempDir(), "--pairing-mode", "zigbee")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid pairing mode")
}

func TestNewConfigBLEWiFiNeedsCredentials(t *testing.T) {
	_, err := parseConfig(t, "--tests-dir", t.TempDir(), "--pairing-mode", "ble-wifi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "wifi-ssid")

	cfg, err := parseConfig(t, "--tests-dir", t.TempDir(),
		"--pairing-mode", "ble-wifi", "--wifi-ssid", "lab", "--wifi-password", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "lab", cfg.Pairing.SSID)
}

func TestNewConfigBLEThreadNeedsDataset(t *testing.T) {
	_, err := parseConfig(t, "--tests-dir", t.TempDir(), "--pairing-mode", "ble-thread")
	require.Error(t, err)
	require.Contains(t, err.Error(), "thread-dataset")
}
