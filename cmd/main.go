package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

var configPaths = []string{"config.toml", "~/.drivecast/config.toml"}

func main() {
	logger := shared.NewLogger(nil)

	config, configPath := loadConfig(logger)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:    "drivecast",
		Usage:   "Listen to and read stories stored on Google Drive",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(runner.logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
		case errors.Is(err, context.Canceled):
			logger.Debug("interrupted")
		default:
			runner.Close()
			logger.Fatalf("application error: %v", err)
		}
	}
}

// loadConfig returns the first readable config file, falling back to the embedded defaults.
func loadConfig(logger *log.Logger) (*shared.Config, string) {
	for _, p := range configPaths {
		p = shared.ExpandHome(p)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		config, err := shared.LoadConfig(p)
		if err != nil {
			logger.Warn("failed to load config, using defaults", "path", p, "error", err)
			return shared.DefaultConfig(), p
		}
		return config, p
	}
	return shared.DefaultConfig(), ""
}
