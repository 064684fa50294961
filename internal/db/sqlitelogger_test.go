package db

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"irrigation-node/internal/config"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu   sync.Mutex
	recs []map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := map[string]slog.Value{"msg": slog.StringValue(r.Message)}
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	h.recs = append(h.recs, m)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) last(t *testing.T) map[string]slog.Value {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.recs) - 1; i >= 0; i-- {
		if h.recs[i]["msg"].String() == "sql" {
			return h.recs[i]
		}
	}
	t.Fatal("no sql log record")
	return nil
}

func openLogged(t *testing.T) (*sql.DB, *captureHandler) {
	t.Helper()
	h := &captureHandler{}
	connector, err := NewLoggingConnector(":memory:", slog.New(h))
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, h
}

func TestNewLoggingConnector_nilLoggerUsesDefault(t *testing.T) {
	conn, err := NewLoggingConnector(":memory:", nil)
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	if conn.(*loggingConnector).logger != slog.Default() {
		t.Fatal("expected slog.Default() logger")
	}
}

func TestLoggingConnector_ExecLogged(t *testing.T) {
	db, h := openLogged(t)

	if _, err := db.Exec(`CREATE TABLE cycles (id INTEGER PRIMARY KEY, branch TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO cycles (branch) VALUES (?)`, "water"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got := h.last(t)
	if got["op"].String() != "exec" {
		t.Errorf("op = %q, want exec", got["op"].String())
	}
	if got["sql"].String() != `INSERT INTO cycles (branch) VALUES (?)` {
		t.Errorf("sql = %q", got["sql"].String())
	}
	args, ok := got["args"].Any().([]string)
	if !ok || len(args) != 1 || args[0] != "water" {
		t.Errorf("args = %v, want [water]", got["args"])
	}
	if _, ok := got["duration_ms"]; !ok {
		t.Error("expected duration_ms attribute")
	}
}

func TestLoggingConnector_QueryLogged(t *testing.T) {
	db, h := openLogged(t)

	var one int
	if err := db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("query row: %v", err)
	}

	got := h.last(t)
	if got["op"].String() != "query" {
		t.Errorf("op = %q, want query", got["op"].String())
	}
	if got["sql"].String() != `SELECT 1` {
		t.Errorf("sql = %q", got["sql"].String())
	}
}

func TestLoggingConnector_ErrorLogged(t *testing.T) {
	db, h := openLogged(t)

	if _, err := db.Exec(`INSERT INTO missing (x) VALUES (1)`); err == nil {
		t.Fatal("expected error for missing table")
	}
	got := h.last(t)
	if got["op"].String() != "prepare" {
		t.Errorf("op = %q, want prepare", got["op"].String())
	}
	if _, ok := got["error"]; !ok {
		t.Error("expected error attribute")
	}
}

func TestLoggingConnector_Ping(t *testing.T) {
	db, _ := openLogged(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.Config{SQLiteDSN: "file::memory:?cache=shared", SQLitePath: "ignored.db"},
			want: "file::memory:?cache=shared",
		},
		{
			name: "plain path",
			cfg:  config.Config{SQLitePath: filepath.Join(dir, "data", "irrigation.db")},
			want: "file:" + filepath.Join(dir, "data", "irrigation.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			name: "file uri with params",
			cfg:  config.Config{SQLitePath: "file:test.db?mode=rwc"},
			want: "file:test.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelDebug} {
		db, err := Open(config.Config{SQLitePath: path, LogLevel: level})
		if err != nil {
			t.Fatalf("Open(level=%v): %v", level, err)
		}
		var mode string
		if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
			t.Fatalf("pragma: %v", err)
		}
		if !strings.EqualFold(mode, "wal") {
			t.Errorf("journal_mode = %q, want wal", mode)
		}
		if err := Close(db); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if err := Close(nil); err != nil {
		t.Fatalf("Close(nil): %v", err)
	}
}
