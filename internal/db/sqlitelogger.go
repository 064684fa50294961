package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// slowStatement is the duration above which a statement is logged at warn.
const slowStatement = 250 * time.Millisecond

// NewLoggingConnector returns a driver.Connector over sqlite3 that logs each
// statement with its arguments and duration. Use it with sql.OpenDB.
// A nil logger means slog.Default().
func NewLoggingConnector(dsn string, logger *slog.Logger) (driver.Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingConnector{dsn: dsn, logger: logger, driver: &sqlite3.SQLiteDriver{}}, nil
}

type loggingConnector struct {
	dsn    string
	logger *slog.Logger
	driver *sqlite3.SQLiteDriver
}

func (c *loggingConnector) Driver() driver.Driver { return c.driver }

func (c *loggingConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.driver.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &loggingConn{conn: conn, logger: c.logger}, nil
}

type loggingConn struct {
	conn   driver.Conn
	logger *slog.Logger
}

func (c *loggingConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *loggingConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if p, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		c.logger.Debug("sql", "op", "prepare", "sql", query, "error", err)
		return nil, err
	}
	return &loggingStmt{stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *loggingConn) Close() error { return c.conn.Close() }

func (c *loggingConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *loggingConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019 fallback for drivers without BeginTx
	return c.conn.Begin()
}

// Ping lets db.Ping reach the underlying connection.
func (c *loggingConn) Ping(ctx context.Context) error {
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type loggingStmt struct {
	stmt   driver.Stmt
	query  string
	logger *slog.Logger
}

func (s *loggingStmt) Close() error { return s.stmt.Close() }

func (s *loggingStmt) NumInput() int { return s.stmt.NumInput() }

func (s *loggingStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

func (s *loggingStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var (
		res driver.Result
		err error
	)
	if e, ok := s.stmt.(driver.StmtExecContext); ok {
		res, err = e.ExecContext(ctx, args)
	} else {
		//nolint:staticcheck // SA1019 fallback for statements without ExecContext
		res, err = s.stmt.Exec(namedToValues(args))
	}
	s.log(ctx, "exec", args, time.Since(start), err)
	return res, err
}

func (s *loggingStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

func (s *loggingStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var (
		rows driver.Rows
		err  error
	)
	if q, ok := s.stmt.(driver.StmtQueryContext); ok {
		rows, err = q.QueryContext(ctx, args)
	} else {
		//nolint:staticcheck // SA1019 fallback for statements without QueryContext
		rows, err = s.stmt.Query(namedToValues(args))
	}
	s.log(ctx, "query", args, time.Since(start), err)
	return rows, err
}

func (s *loggingStmt) log(ctx context.Context, op string, args []driver.NamedValue, took time.Duration, err error) {
	level := slog.LevelDebug
	if took > slowStatement {
		level = slog.LevelWarn
	}
	attrs := []any{
		"op", op,
		"sql", s.query,
		"args", formatArgs(args),
		"duration_ms", took.Milliseconds(),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		attrs = append(attrs, "error", err)
	}
	s.logger.Log(ctx, level, "sql", attrs...)
}

func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		v := formatArg(a.Value)
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		out[i] = v
	}
	return out
}

func formatArg(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}

func namedToValues(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}
