// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package store opens principal databases and manages their schema.
package store

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	// Register the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Dialect identifies a supported database.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectOf returns the dialect for a database URL.
func DialectOf(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"),
		strings.HasPrefix(databaseURL, "pgx5://"):
		return DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite://"),
		strings.HasPrefix(databaseURL, "sqlite3://"):
		return DialectSQLite, nil
	default:
		scheme, _, _ := strings.Cut(databaseURL, "://")
		return "", oops.Code("UNSUPPORTED_DATABASE").
			With("scheme", scheme).
			Errorf("unsupported database URL scheme %q", scheme)
	}
}

// SQLitePath strips the sqlite:// or sqlite3:// scheme from a URL.
func SQLitePath(databaseURL string) string {
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if rest, found := strings.CutPrefix(databaseURL, prefix); found {
			return rest
		}
	}
	return databaseURL
}

// RetryConfig bounds connection attempts.
type RetryConfig struct {
	Attempts uint64
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryConfig returns the retry policy used by serve.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 5, Base: 500 * time.Millisecond, Max: 5 * time.Second}
}

func (c RetryConfig) backoff() retry.Backoff {
	b := retry.NewExponential(c.Base)
	b = retry.WithCappedDuration(c.Max, b)
	return retry.WithMaxRetries(c.Attempts, b)
}

// Connect opens a pgx pool for dsn and pings it, retrying with exponential
// backoff while the database comes up.
func Connect(ctx context.Context, dsn string, rc RetryConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}

	attempt := 0
	pool, err := retry.DoValue(ctx, rc.backoff(), func(ctx context.Context) (*pgxpool.Pool, error) {
		attempt++
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			err = pool.Ping(ctx)
			if err != nil {
				pool.Close()
			}
		}
		if err != nil {
			slog.WarnContext(ctx, "database not ready, retrying",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", err)
			return nil, retry.RetryableError(err)
		}
		return pool, nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}

// OpenSQLite opens the SQLite database at databaseURL and enables foreign keys.
func OpenSQLite(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	dsn := SQLitePath(databaseURL)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn+sep+"_foreign_keys=on")
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("dialect", string(DialectSQLite)).
			Wrap(err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return db, nil
}
