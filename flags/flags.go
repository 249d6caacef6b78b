package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "TH"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	TestsDir = &cli.StringFlag{
		Name:     "tests-dir",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("TESTS_DIR"),
		Usage:    "Path to the test collections directory from which to discover tests",
	}
	DockerImage = &cli.StringFlag{
		Name:    "docker-image",
		Value:   "connectedhomeip/chip-cert-bins:latest",
		EnvVars: prefixEnvVars("DOCKER_IMAGE"),
		Usage:   "Test runner container image",
	}
	ContainerName = &cli.StringFlag{
		Name:    "container-name",
		Value:   "th-test-runner",
		EnvVars: prefixEnvVars("CONTAINER_NAME"),
		Usage:   "Name given to the test runner container",
	}
	NetworkMode = &cli.StringFlag{
		Name:    "network-mode",
		Value:   "host",
		EnvVars: prefixEnvVars("NETWORK_MODE"),
		Usage:   "Docker network mode for the runner container",
	}
	RunTitle = &cli.StringFlag{
		Name:    "run-title",
		Value:   "Certification Test Run",
		EnvVars: prefixEnvVars("RUN_TITLE"),
		Usage:   "Title recorded on the test run",
	}
	Operator = &cli.StringFlag{
		Name:    "operator",
		Value:   "",
		EnvVars: prefixEnvVars("OPERATOR"),
		Usage:   "Name of the operator running the tests",
	}
	Collections = &cli.StringSliceFlag{
		Name:    "collections",
		EnvVars: prefixEnvVars("COLLECTIONS"),
		Usage:   "Test collections to run (default: all discovered collections)",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	CertificationMode = &cli.BoolFlag{
		Name:    "certification-mode",
		Value:   false,
		EnvVars: prefixEnvVars("CERTIFICATION_MODE"),
		Usage:   "Abort the run when a mandatory suite fails",
	}
	PairingMode = &cli.StringFlag{
		Name:    "pairing-mode",
		Value:   "onnetwork",
		EnvVars: prefixEnvVars("PAIRING_MODE"),
		Usage:   "DUT pairing mode: onnetwork, ble-wifi or ble-thread",
	}
	NodeID = &cli.Uint64Flag{
		Name:    "node-id",
		Value:   0x12344321,
		EnvVars: prefixEnvVars("NODE_ID"),
		Usage:   "Node id assigned to the DUT during commissioning",
	}
	SetupCode = &cli.StringFlag{
		Name:    "setup-code",
		Value:   "20202021",
		EnvVars: prefixEnvVars("SETUP_CODE"),
		Usage:   "DUT setup passcode",
	}
	Discriminator = &cli.StringFlag{
		Name:    "discriminator",
		Value:   "3840",
		EnvVars: prefixEnvVars("DISCRIMINATOR"),
		Usage:   "DUT long discriminator",
	}
	WiFiSSID = &cli.StringFlag{
		Name:    "wifi-ssid",
		Value:   "",
		EnvVars: prefixEnvVars("WIFI_SSID"),
		Usage:   "Wi-Fi network name for ble-wifi pairing",
	}
	WiFiPassword = &cli.StringFlag{
		Name:    "wifi-password",
		Value:   "",
		EnvVars: prefixEnvVars("WIFI_PASSWORD"),
		Usage:   "Wi-Fi network password for ble-wifi pairing",
	}
	ThreadDataset = &cli.StringFlag{
		Name:    "thread-dataset",
		Value:   "",
		EnvVars: prefixEnvVars("THREAD_DATASET"),
		Usage:   "Thread operational dataset (hex) for ble-thread pairing",
	}
	PromptTimeout = &cli.DurationFlag{
		Name:    "prompt-timeout",
		Value:   60 * time.Second,
		EnvVars: prefixEnvVars("PROMPT_TIMEOUT"),
		Usage:   "How long to wait for an operator prompt response",
	}
	EventTimeout = &cli.DurationFlag{
		Name:    "event-timeout",
		Value:   30 * time.Second,
		EnvVars: prefixEnvVars("EVENT_TIMEOUT"),
		Usage:   "How long to wait for the next runner hook event before assuming the runner died",
	}
	HooksAddress = &cli.StringFlag{
		Name:    "hooks-addr",
		Value:   "127.0.0.1:0",
		EnvVars: prefixEnvVars("HOOKS_ADDR"),
		Usage:   "Listen address of the runner hook event channel",
	}
	SocketAddress = &cli.StringFlag{
		Name:    "socket-addr",
		Value:   "0.0.0.0:9000",
		EnvVars: prefixEnvVars("SOCKET_ADDR"),
		Usage:   "Listen address of the operator WebSocket server",
	}
	VideoAddress = &cli.StringFlag{
		Name:    "video-addr",
		Value:   "0.0.0.0:5010",
		EnvVars: prefixEnvVars("VIDEO_ADDR"),
		Usage:   "UDP address video stream datagrams are received on",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level: debug, info, warn or error",
	}
)

var requiredFlags = []cli.Flag{
	TestsDir,
}

var optionalFlags = []cli.Flag{
	DockerImage,
	ContainerName,
	NetworkMode,
	RunTitle,
	Operator,
	Collections,
	RunInterval,
	CertificationMode,
	PairingMode,
	NodeID,
	SetupCode,
	Discriminator,
	WiFiSSID,
	WiFiPassword,
	ThreadDataset,
	PromptTimeout,
	EventTimeout,
	HooksAddress,
	SocketAddress,
	VideoAddress,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
