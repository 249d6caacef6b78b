package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/project-chip/certification-tool-backend-sub001/bridge"
)

// Pairing modes supported by the controller.
const (
	PairingModeOnNetwork = "onnetwork"
	PairingModeBLEWiFi   = "ble-wifi"
	PairingModeBLEThread = "ble-thread"
)

// PairingConfig describes how the device under test is commissioned.
type PairingConfig struct {
	Mode          string
	NodeID        string
	SetupCode     string
	Discriminator string

	// BLE-WiFi credentials.
	SSID     string
	Password string

	// BLE-Thread operational dataset.
	HexDataset string
}

// ChipToolCommissioner pairs through the chip-tool binary inside the runner
// container.
type ChipToolCommissioner struct {
	bridge Bridge
	config PairingConfig
}

func NewChipToolCommissioner(b Bridge, cfg PairingConfig) *ChipToolCommissioner {
	return &ChipToolCommissioner{bridge: b, config: cfg}
}

func (c *ChipToolCommissioner) Pair(ctx context.Context) error {
	cmd, err := c.pairingCommand()
	if err != nil {
		return &CommissioningError{Err: err}
	}
	res, err := c.bridge.SendCommand(ctx, cmd, bridge.CommandOptions{})
	if err != nil {
		return &CommissioningError{Err: err}
	}
	if res.ExitCode != 0 {
		return &CommissioningError{Err: fmt.Errorf("pairing exited with code %d", res.ExitCode)}
	}
	return nil
}

func (c *ChipToolCommissioner) Unpair(ctx context.Context) error {
	cmd := fmt.Sprintf("pairing unpair %s", c.config.NodeID)
	res, err := c.bridge.SendCommand(ctx, cmd, bridge.CommandOptions{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("unpair exited with code %d", res.ExitCode)
	}
	return nil
}

func (c *ChipToolCommissioner) pairingCommand() (string, error) {
	cfg := c.config
	switch cfg.Mode {
	case PairingModeOnNetwork, "":
		return fmt.Sprintf("pairing onnetwork %s %s", cfg.NodeID, cfg.SetupCode), nil
	case PairingModeBLEWiFi:
		if cfg.SSID == "" {
			return "", errors.New("pairing config is missing wifi credentials")
		}
		return fmt.Sprintf("pairing ble-wifi %s %s %s %s %s",
			cfg.NodeID, cfg.SSID, cfg.Password, cfg.SetupCode, cfg.Discriminator), nil
	case PairingModeBLEThread:
		if cfg.HexDataset == "" {
			return "", errors.New("pairing config is missing thread dataset")
		}
		return fmt.Sprintf("pairing ble-thread %s hex:%s %s %s",
			cfg.NodeID, cfg.HexDataset, cfg.SetupCode, cfg.Discriminator), nil
	default:
		return "", fmt.Errorf("unsupported pairing mode %q", cfg.Mode)
	}
}

// commissionWithRetries keeps pairing until it succeeds or the operator
// cancels. Every failed attempt raises a retry/cancel prompt; an answer the
// state machine cannot classify is a contract violation and is never
// silently retried.
func (c *Coordinator) commissionWithRetries(ctx context.Context, commissioner Commissioner) error {
	for {
		err := commissioner.Pair(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.config.Log.Warn("Commissioning attempt failed", "error", err)

		message := fmt.Sprintf(
			"Commissioning failed with error: %v.\nIf you want to retry, please make sure "+
				"that DUT is ready for commissioning and then select the 'RETRY' option.", err)
		choice, promptErr := c.config.Prompter.PromptOptions(
			ctx, message, []string{OptionRetry, OptionCancel}, c.promptTimeout())
		if promptErr != nil {
			return &PromptContractError{Err: fmt.Errorf("commissioning retry prompt failed: %w", promptErr)}
		}

		switch choice {
		case OptionRetry:
			c.config.Log.Info("User chose to retry commissioning")
		case OptionCancel:
			return &SuiteSetupError{Reason: "failed to commission DUT and user chose not to retry"}
		default:
			return &PromptContractError{Err: fmt.Errorf("unknown prompt option %q for commissioning retry", choice)}
		}
	}
}
