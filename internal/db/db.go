package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"irrigation-node/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the cycle journal database. At debug level every statement is
// logged through the logging connector.
func Open(cfg config.Config) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogLevel <= slog.LevelDebug {
		connector, err := NewLoggingConnector(dsn, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	// One writer (the control loop) and a few readers (status API).
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.SQLiteDSN != "" {
		return cfg.SQLiteDSN, nil
	}

	path := cfg.SQLitePath
	if !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// WAL keeps status reads from blocking the loop's inserts.
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
