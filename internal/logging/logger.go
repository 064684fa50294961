package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"irrigation-node/internal/config"
)

func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, cfg, version, appName)
}

func newWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName, "device", cfg.DeviceID)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"device", cfg.DeviceID,
	)
}
