package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/project-chip/certification-tool-backend-sub001/engine"
	"github.com/project-chip/certification-tool-backend-sub001/flags"
)

// Config holds the application configuration
type Config struct {
	TestsDir      string
	DockerImage   string
	ContainerName string
	NetworkMode   string

	RunTitle    string
	Operator    string
	Collections []string // Collections to run; empty means all discovered collections

	RunInterval       time.Duration // Interval between test runs
	RunOnce           bool          // Indicates if the service should exit after one test run
	CertificationMode bool          // Abort the run when a mandatory suite fails

	Pairing engine.PairingConfig

	PromptTimeout    time.Duration
	EventWaitTimeout time.Duration
	HooksAddress     string

	Log log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger, testsDir string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if testsDir == "" {
		return nil, errors.New("tests directory is required")
	}

	absTestsDir, err := filepath.Abs(testsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for tests directory '%s': %w", testsDir, err)
	}

	pairing := engine.PairingConfig{
		Mode:          ctx.String(flags.PairingMode.Name),
		NodeID:        fmt.Sprintf("%d", ctx.Uint64(flags.NodeID.Name)),
		SetupCode:     ctx.String(flags.SetupCode.Name),
		Discriminator: ctx.String(flags.Discriminator.Name),
		SSID:          ctx.String(flags.WiFiSSID.Name),
		Password:      ctx.String(flags.WiFiPassword.Name),
		HexDataset:    ctx.String(flags.ThreadDataset.Name),
	}
	if err := validatePairing(pairing); err != nil {
		return nil, err
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		TestsDir:          absTestsDir,
		DockerImage:       ctx.String(flags.DockerImage.Name),
		ContainerName:     ctx.String(flags.ContainerName.Name),
		NetworkMode:       ctx.String(flags.NetworkMode.Name),
		RunTitle:          ctx.String(flags.RunTitle.Name),
		Operator:          ctx.String(flags.Operator.Name),
		Collections:       ctx.StringSlice(flags.Collections.Name),
		RunInterval:       runInterval,
		RunOnce:           runOnce,
		CertificationMode: ctx.Bool(flags.CertificationMode.Name),
		Pairing:           pairing,
		PromptTimeout:     ctx.Duration(flags.PromptTimeout.Name),
		EventWaitTimeout:  ctx.Duration(flags.EventTimeout.Name),
		HooksAddress:      ctx.String(flags.HooksAddress.Name),
		Log:               log,
	}, nil
}

func validatePairing(p engine.PairingConfig) error {
	switch p.Mode {
	case engine.PairingModeOnNetwork:
	case engine.PairingModeBLEWiFi:
		if p.SSID == "" || p.Password == "" {
			return errors.New("ble-wifi pairing requires wifi-ssid and wifi-password")
		}
	case engine.PairingModeBLEThread:
		if p.HexDataset == "" {
			return errors.New("ble-thread pairing requires thread-dataset")
		}
	default:
		return fmt.Errorf("invalid pairing mode: %s. Must be one of: %s, %s, %s",
			p.Mode, engine.PairingModeOnNetwork, engine.PairingModeBLEWiFi, engine.PairingModeBLEThread)
	}
	if p.SetupCode == "" {
		return errors.New("setup code is required")
	}
	return nil
}
