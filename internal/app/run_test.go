package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irrigation-node/internal/config"
	"irrigation-node/internal/connectivity"
	"irrigation-node/internal/metrics"
)

func simConfig(t *testing.T, telemetryURL string) config.Config {
	t.Helper()
	return config.Config{
		AppEnv:          "dev",
		DeviceID:        "test",
		HWBackend:       config.BackendSim,
		CycleInterval:   20 * time.Millisecond,
		LightSensor:     config.LightNone,
		DryThreshold:    1200,
		NightStart:      18,
		NightEnd:        12,
		PumpHold:        5 * time.Millisecond,
		AlarmBlinks:     2,
		AlarmInterval:   time.Millisecond,
		WarningBlinks:   1,
		WarningInterval: time.Millisecond,
		Station:         config.StationStatic,
		NetPollInterval: time.Millisecond,
		NetMaxPolls:     1,
		// Nothing listens here; the sync fails fast and the node runs on the system clock.
		NTPServer:        "127.0.0.1",
		TelemetryURL:     telemetryURL,
		TelemetryAPIKey:  "KEY",
		TelemetryTimeout: time.Second,
		HTTPAddr:         "127.0.0.1:0",
		SQLitePath:       filepath.Join(t.TempDir(), "node.db"),
		JournalRetention: time.Hour,
	}
}

func TestRun_SimBackendJournalsCycles(t *testing.T) {
	var hits atomic.Int32
	dash := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") == "KEY" {
			hits.Add(1)
		}
	}))
	defer dash.Close()

	cfg := simConfig(t, dash.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, "test") }()

	require.Eventually(t, func() bool { return hits.Load() >= 2 }, 10*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var cycles, runs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT run_id) FROM cycles`).Scan(&cycles, &runs))
	assert.GreaterOrEqual(t, cycles, 1)
	assert.Equal(t, 1, runs)
}

func TestMigrate_CreatesJournal(t *testing.T) {
	cfg := config.Config{SQLitePath: filepath.Join(t.TempDir(), "sub", "node.db")}

	require.NoError(t, Migrate(context.Background(), cfg))
	require.NoError(t, Migrate(context.Background(), cfg), "second run is a no-op")

	db, err := sql.Open("sqlite3", cfg.SQLitePath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&n))
	assert.Zero(t, n)
}

func TestNewStation(t *testing.T) {
	assert.IsType(t, &connectivity.StaticStation{}, newStation(config.Config{Station: config.StationStatic}))
	assert.IsType(t, &connectivity.NMCLIStation{}, newStation(config.Config{Station: config.StationNMCLI, WiFiInterface: "wlan0"}))
}

func TestOpenMirrors(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		set, err := openMirrors(context.Background(), config.Config{}, metrics.NoopRecorder{})
		require.NoError(t, err)
		assert.Zero(t, set.Len())
	})

	t.Run("influx", func(t *testing.T) {
		set, err := openMirrors(context.Background(), config.Config{
			InfluxURL: "http://127.0.0.1:1", InfluxToken: "t", InfluxOrg: "o", InfluxBucket: "b",
		}, metrics.NoopRecorder{})
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
		assert.NoError(t, set.Close())
	})

	t.Run("influx incomplete", func(t *testing.T) {
		_, err := openMirrors(context.Background(), config.Config{InfluxURL: "http://127.0.0.1:1"}, metrics.NoopRecorder{})
		assert.Error(t, err)
	})

	t.Run("mqtt broker down", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		set, err := openMirrors(ctx, config.Config{
			MQTTBroker: "127.0.0.1", MQTTPort: 1, MQTTClientID: "t", MQTTTopic: "x",
		}, metrics.NoopRecorder{})
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
		assert.NoError(t, set.Close())
	})
}
