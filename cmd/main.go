package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	harness "github.com/project-chip/certification-tool-backend-sub001"
	"github.com/project-chip/certification-tool-backend-sub001/flags"
	"github.com/project-chip/certification-tool-backend-sub001/service"
	"github.com/project-chip/certification-tool-backend-sub001/socket"
)

var (
	Version   = "v2.10.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "certification-tool"
	app.Usage = "Matter Certification Test Harness"
	app.Description = "Discovers and runs Matter certification tests against a device under test"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if harness.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 2))
			} else if harness.IsTestFailureError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			} else {
				cli.HandleExitCoder(cli.Exit(err.Error(), 1))
			}
		}
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	logger := newLogger(cliCtx.String(flags.LogLevel.Name))

	cfg, err := harness.NewConfig(cliCtx, logger, cliCtx.String(flags.TestsDir.Name))
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	hub := socket.NewHub(socket.HubConfig{Log: logger})
	svc := service.New(service.Config{
		Hub:           hub,
		SocketAddress: cliCtx.String(flags.SocketAddress.Name),
		VideoAddress:  cliCtx.String(flags.VideoAddress.Name),
	})
	svc.Start(appCtx)
	defer svc.Shutdown()

	h, err := harness.New(appCtx, cfg, Version, hub, func(error) { cancelApp() })
	if err != nil {
		return harness.NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
	}

	if err := h.Start(appCtx); err != nil {
		return err
	}

	// Block until a signal arrives or the run-once shutdown fires.
	<-appCtx.Done()
	if err := h.Stop(context.Background()); err != nil {
		logger.Error("Error stopping harness", "error", err)
	}
	return h.WaitForShutdown(context.Background())
}

func newLogger(level string) log.Logger {
	lvl := log.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = log.LevelDebug
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false))
}
