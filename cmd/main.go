package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"irrigation-node/internal/app"
	"irrigation-node/internal/config"
	"irrigation-node/internal/logging"
)

const appName = "irrigation-node"

// Set with -ldflags "-X main.version=...".
var version = "dev"

var CLI struct {
	EnvFile string           `name:"env-file" help:"Optional dotenv file loaded before reading the environment" default:".env" type:"path"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run     struct{} `cmd:"" default:"1" help:"Run the control loop (default)"`
	Migrate struct{} `cmd:"" help:"Apply pending cycle journal migrations and exit"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(appName),
		kong.Description("Soil-moisture irrigation controller"),
		kong.Vars{"version": version},
	)

	if err := godotenv.Load(CLI.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "env file %s: %v\n", CLI.EnvFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(cfg, version, appName))

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"command", kctx.Command(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "migrate":
		err = app.Migrate(ctx, cfg)
	default:
		err = app.Run(ctx, cfg, version)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		stop()
		os.Exit(1)
	}

	slog.Info("shutting down")
}
