// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/stall-allot/db"
)

// Config selects and tunes the backing database.
type Config struct {
	Dialect         Dialect
	URL             string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured database, verifies the connection and
// applies the schema.
func Open(ctx context.Context, cfg Config) (*SQL, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = DialectSQLite
	}

	dsn := cfg.URL
	if dialect == DialectSQLite {
		dsn = sqliteDSN(cfg.URL, cfg.BusyTimeout)
	}

	conn, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.CreateSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return New(conn, dialect), nil
}

// sqliteDSN turns a path or file: URI into a modernc DSN with WAL, foreign
// keys, a busy timeout and IMMEDIATE write transactions.
func sqliteDSN(url string, busy time.Duration) string {
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := strings.TrimPrefix(url, "sqlite://")
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + fmt.Sprintf(
		"_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		busy.Milliseconds(),
	)
}
