// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/auth/postgres"
	"github.com/authscope/authscope/internal/auth/sqlite"
	"github.com/authscope/authscope/internal/config"
	"github.com/authscope/authscope/internal/mail"
	"github.com/authscope/authscope/internal/observability"
	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/store"
	"github.com/authscope/authscope/internal/web"
	"github.com/authscope/authscope/internal/xdg"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Registry returns the scope registry the configuration is applied to.
	// Default: scope.Default
	Registry func() *scope.Registry

	// ConfigLoader reads the configuration file.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.File, error)

	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// StoreFactory opens the principal store for the configured record types.
	// Default: openStore
	StoreFactory func(ctx context.Context, databaseURL string, models []string) (PrincipalStore, error)

	// RedisFactory creates the session store client.
	// Default: redis.NewUniversalClient
	RedisFactory func(addr string) redis.UniversalClient

	// MailerFactory creates the password-reset mailer.
	// Default: newMailer
	MailerFactory func(ctx context.Context, cfg config.Mail, logger *slog.Logger) (mail.Mailer, error)

	// WebServerFactory creates the authentication HTTP server.
	// Default: web.NewServer
	WebServerFactory func(addr string, handler http.Handler) WebServer

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

// AutoMigrator is the subset of store.Migrator used on start-up.
type AutoMigrator interface {
	Up() error
	Close() error
}

// PrincipalStore resolves record types to repositories and owns the
// underlying connection.
type PrincipalStore interface {
	auth.RepositoryResolver
	Close() error
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := &ServeDeps{}
	if d != nil {
		*out = *d
	}
	if out.Registry == nil {
		out.Registry = scope.Default
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (AutoMigrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.StoreFactory == nil {
		out.StoreFactory = openStore
	}
	if out.RedisFactory == nil {
		out.RedisFactory = func(addr string) redis.UniversalClient {
			return redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		}
	}
	if out.MailerFactory == nil {
		out.MailerFactory = newMailer
	}
	if out.WebServerFactory == nil {
		out.WebServerFactory = func(addr string, handler http.Handler) WebServer {
			return web.NewServer(addr, handler)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	return out
}

type postgresStore struct {
	*postgres.Catalog
	pool *pgxpool.Pool
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

type sqliteStore struct {
	*sqlite.Catalog
	db *sqlx.DB
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// openStore connects to databaseURL and serves one repository per model.
func openStore(ctx context.Context, databaseURL string, models []string) (PrincipalStore, error) {
	dialect, err := store.DialectOf(databaseURL)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case store.DialectPostgres:
		pool, err := store.Connect(ctx, databaseURL, store.DefaultRetryConfig())
		if err != nil {
			return nil, err
		}
		return &postgresStore{Catalog: postgres.NewCatalog(pool, models...), pool: pool}, nil
	default:
		if err := xdg.EnsureDir(filepath.Dir(store.SQLitePath(databaseURL))); err != nil {
			return nil, err
		}
		db, err := store.OpenSQLite(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return &sqliteStore{Catalog: sqlite.NewCatalog(db, models...), db: db}, nil
	}
}

// newMailer builds the configured mailer.
func newMailer(ctx context.Context, cfg config.Mail, logger *slog.Logger) (mail.Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return mail.NewLogMailer(logger), nil
	case "ses":
		client, err := mail.NewSESClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return mail.NewSESMailer(client, cfg.From), nil
	default:
		return nil, oops.Code("MAIL_PROVIDER_UNKNOWN").
			With("provider", cfg.Provider).
			Errorf("unknown mail provider %q", cfg.Provider)
	}
}
