package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"irrigation-node/internal/config"
	"irrigation-node/internal/connectivity"
	"irrigation-node/internal/controller"
	"irrigation-node/internal/db"
	"irrigation-node/internal/httpapi"
	"irrigation-node/internal/hw"
	"irrigation-node/internal/irrigation"
	"irrigation-node/internal/journal"
	"irrigation-node/internal/metrics"
	"irrigation-node/internal/migrate"
	"irrigation-node/internal/mirror"
	"irrigation-node/internal/sensor"
	"irrigation-node/internal/telemetry"
	"irrigation-node/internal/views"
)

const (
	retentionInterval = time.Hour
	mirrorTimeout     = 5 * time.Second
	ntpTimeout        = 5 * time.Second
)

// Run wires the node together and blocks until ctx is done.
func Run(ctx context.Context, cfg config.Config, version string) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"hwBackend", cfg.HWBackend,
		"cycleInterval", cfg.CycleInterval,
		"lightSensor", cfg.LightSensor,
		"station", cfg.Station,
		"networks", len(cfg.Networks),
		"ntpServer", cfg.NTPServer,
		"utcOffset", cfg.UTCOffset,
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"influxURL", cfg.InfluxURL,
	)
	for _, w := range cfg.Warnings() {
		slog.Warn("config", "warning", w)
	}

	board, err := hw.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		// Releases the relay as well as the bus.
		if err := board.Close(); err != nil {
			slog.Error("board close", "error", err)
		}
	}()

	light, err := sensor.NewLightSensor(cfg, board)
	if err != nil {
		return err
	}
	actuator := irrigation.NewActuator(board.Pump, board.LED, irrigation.Timing{
		PumpHold:        cfg.PumpHold,
		AlarmBlinks:     cfg.AlarmBlinks,
		AlarmInterval:   cfg.AlarmInterval,
		WarningBlinks:   cfg.WarningBlinks,
		WarningInterval: cfg.WarningInterval,
	})

	clock := connectivity.NewClock(connectivity.NTPSource{Server: cfg.NTPServer, Timeout: ntpTimeout}, cfg.UTCOffset)
	network := connectivity.NewManager(newStation(cfg), clock, connectivity.Options{
		Networks:     cfg.Networks,
		PollInterval: cfg.NetPollInterval,
		MaxPolls:     cfg.NetMaxPolls,
	})
	if err := network.Connect(ctx); err != nil {
		slog.Warn("starting offline", "error", err)
	}

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(dbConn); err != nil {
			slog.Error("db close", "error", err)
		}
	}()
	if _, err := migrate.Run(ctx, dbConn); err != nil {
		return err
	}
	repo := journal.NewRepository(dbConn)

	retention, err := journal.NewRetention(repo, cfg.JournalRetention, clock)
	if err != nil {
		return err
	}
	if err := retention.Start(ctx, retentionInterval); err != nil {
		return err
	}
	defer func() {
		if err := retention.Stop(); err != nil {
			slog.Error("retention stop", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	mirrors, err := openMirrors(ctx, cfg, rec)
	if err != nil {
		return err
	}
	defer func() {
		if err := mirrors.Close(); err != nil {
			slog.Error("mirrors close", "error", err)
		}
	}()

	runID := uuid.NewString()
	loop := controller.New(controller.Deps{
		Sensors:  sensor.NewBoardReader(board, light),
		Actuator: actuator,
		Network:  network,
		Clock:    clock,
		Reporter: telemetry.NewReporter(cfg.TelemetryURL, cfg.TelemetryAPIKey, cfg.TelemetryTimeout, network),
		Journal:  repo,
		Mirrors:  mirrors,
		Metrics:  rec,
	}, controller.Options{
		Params: irrigation.Params{
			DryThreshold: cfg.DryThreshold,
			NightStart:   cfg.NightStart,
			NightEnd:     cfg.NightEnd,
		},
		Interval: cfg.CycleInterval,
		RunID:    runID,
	})

	if err := views.LoadTemplates(); err != nil {
		return err
	}
	mux := httpapi.NewMux(httpapi.Deps{
		DB:       dbConn,
		Journal:  repo,
		Link:     network,
		Loop:     loop,
		Clock:    clock,
		Metrics:  metrics.HTTPHandler(reg),
		DeviceID: cfg.DeviceID,
		RunID:    runID,
		Version:  version,
	})
	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	if runErr != nil {
		slog.Error("http server failed, stopping control loop", "error", runErr)
	}
	// A pump hold in progress finishes before the loop notices.
	stopLoop()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// Migrate applies pending journal migrations and exits.
func Migrate(ctx context.Context, cfg config.Config) error {
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(dbConn) }()

	n, err := migrate.Run(ctx, dbConn)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "count", n, "path", cfg.SQLitePath)
	return nil
}

func newStation(cfg config.Config) connectivity.Station {
	if cfg.Station == config.StationStatic {
		return connectivity.NewStaticStation(true)
	}
	return connectivity.NewNMCLIStation(cfg.WiFiInterface)
}

// openMirrors builds the configured mirrors. An unreachable MQTT broker is
// not fatal; the client keeps retrying in the background.
func openMirrors(ctx context.Context, cfg config.Config, rec metrics.Recorder) (*mirror.Set, error) {
	var ms []mirror.Mirror

	if cfg.MQTTBroker != "" {
		m := mirror.NewMQTT(cfg)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.Connect(connectCtx)
		cancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing, client retries)", "error", err)
		}
		ms = append(ms, mirror.WithBreaker(m, mirror.DefaultBreakerSettings()))
	}

	if cfg.InfluxURL != "" {
		m, err := mirror.NewInflux(cfg)
		if err != nil {
			for _, prev := range ms {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("influx mirror: %w", err)
		}
		ms = append(ms, mirror.WithBreaker(m, mirror.DefaultBreakerSettings()))
	}

	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.Name())
	}
	slog.Info("mirrors configured", "mirrors", names)
	return mirror.NewSet(mirrorTimeout, rec, ms...), nil
}
