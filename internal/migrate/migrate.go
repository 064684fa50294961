// Package migrate applies the embedded journal schema migrations in version
// order. Files are named NNNN_name.sql; applied versions are recorded in
// schema_migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
)

//go:embed sql/*.sql
var sqlFS embed.FS

const (
	migrationsDir = "sql"
	tableName     = "schema_migrations"
)

var migrationFileRe = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type migration struct {
	version string
	name    string
	body    string
}

// Run applies every pending migration and returns how many were applied.
func Run(ctx context.Context, db *sql.DB) (int, error) {
	return run(ctx, db, sqlFS)
}

func run(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}

	pending, err := pendingMigrations(fsys, applied)
	if err != nil {
		return 0, err
	}

	for _, m := range pending {
		if err := apply(ctx, db, m); err != nil {
			return 0, fmt.Errorf("apply %s_%s.sql: %w", m.version, m.name, err)
		}
		slog.Info("migration applied", "version", m.version, "name", m.name)
	}
	return len(pending), nil
}

func pendingMigrations(fsys fs.FS, applied map[string]bool) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var pending []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(e.Name())
		if !ok || applied[version] {
			continue
		}
		body, err := fs.ReadFile(fsys, migrationsDir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		pending = append(pending, migration{version: version, name: name, body: string(body)})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM "+tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func parseMigrationFilename(filename string) (version, name string, ok bool) {
	m := migrationFileRe.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// apply runs the migration body and records it in one transaction.
func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+tableName+" (version, name) VALUES (?, ?)",
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
