// Package journal stores one row per finished control cycle in SQLite.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

//go:embed sql/insert-cycle.sql
var insertCycleSQL string

//go:embed sql/get-latest-cycles.sql
var getLatestCyclesSQL string

//go:embed sql/delete-cycles-before.sql
var deleteCyclesBeforeSQL string

//go:embed sql/count-pump-runs-since.sql
var countPumpRunsSinceSQL string

// Cycle is the record of one control cycle.
type Cycle struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	Duration     Millis    `json:"duration_ms"`
	Hour         int       `json:"hour"`
	Branch       string    `json:"branch"`
	Pattern      string    `json:"pattern"`
	PumpOn       bool      `json:"pump_on"`
	SoilMoisture int       `json:"soil_moisture"`
	WaterPresent bool      `json:"water_present"`
	Light        int       `json:"light"`
	Dark         bool      `json:"dark"`
	LightAware   bool      `json:"light_aware"`
	HumidityPct  float64   `json:"humidity_pct"`
	TemperatureC float64   `json:"temperature_c"`
	Connected    bool      `json:"connected"`
	TimeSynced   bool      `json:"time_synced"`
	Telemetry    string    `json:"telemetry"`
	Faults       []string  `json:"faults,omitempty"`
}

// Millis is a duration that encodes as whole milliseconds.
type Millis time.Duration

func (m Millis) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", time.Duration(m).Milliseconds())), nil
}

type Repository interface {
	InsertCycle(ctx context.Context, c Cycle) (int64, error)
	LatestCycles(ctx context.Context, limit int) ([]Cycle, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	CountPumpRunsSince(ctx context.Context, since time.Time) (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertCycle(ctx context.Context, c Cycle) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertCycleSQL,
		c.RunID,
		c.StartedAt.UnixMilli(),
		time.Duration(c.Duration).Milliseconds(),
		c.Hour,
		c.Branch,
		c.Pattern,
		boolInt(c.PumpOn),
		c.SoilMoisture,
		boolInt(c.WaterPresent),
		c.Light,
		boolInt(c.Dark),
		boolInt(c.LightAware),
		c.HumidityPct,
		c.TemperatureC,
		boolInt(c.Connected),
		boolInt(c.TimeSynced),
		c.Telemetry,
		strings.Join(c.Faults, ","),
	)
	if err != nil {
		return 0, fmt.Errorf("insert cycle: %w", err)
	}
	return res.LastInsertId()
}

// LatestCycles returns up to limit cycles, newest first.
func (r *repositoryImpl) LatestCycles(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := r.db.QueryContext(ctx, getLatestCyclesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close cycles rows", "error", err)
		}
	}()

	out := []Cycle{}
	for rows.Next() {
		var (
			c                                 Cycle
			startedMs, durMs                  int64
			pump, water, dark, aware, up, syn int
			faults                            string
		)
		if err := rows.Scan(
			&c.ID, &c.RunID, &startedMs, &durMs, &c.Hour, &c.Branch, &c.Pattern, &pump,
			&c.SoilMoisture, &water, &c.Light, &dark, &aware,
			&c.HumidityPct, &c.TemperatureC, &up, &syn, &c.Telemetry, &faults,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.StartedAt = time.UnixMilli(startedMs).UTC()
		c.Duration = Millis(time.Duration(durMs) * time.Millisecond)
		c.PumpOn = pump != 0
		c.WaterPresent = water != 0
		c.Dark = dark != 0
		c.LightAware = aware != 0
		c.Connected = up != 0
		c.TimeSynced = syn != 0
		if faults != "" {
			c.Faults = strings.Split(faults, ",")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteCyclesBeforeSQL, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete cycles: %w", err)
	}
	return res.RowsAffected()
}

func (r *repositoryImpl) CountPumpRunsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countPumpRunsSinceSQL, since.UnixMilli()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pump runs: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
