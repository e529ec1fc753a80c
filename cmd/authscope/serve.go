// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/config"
	"github.com/authscope/authscope/internal/logging"
	"github.com/authscope/authscope/internal/password"
	"github.com/authscope/authscope/internal/session"
	"github.com/authscope/authscope/internal/store"
	"github.com/authscope/authscope/internal/web"
	"github.com/authscope/authscope/pkg/errutil"
)

const (
	serviceName     = "authscope"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the authentication HTTP server. Scopes, storage, the Redis
session store and mail delivery are read from the config file; the flags
below override the matching file values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("web-addr", config.DefaultWebAddr, "HTTP listen address")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "postgres:// or sqlite:// database URL")
	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations on start-up")
	cmd.Flags().String("redis-addr", config.DefaultRedisAddr, "Redis address for the session store")
	cmd.Flags().String("base-url", config.DefaultBaseURL, "public base URL used in mail links")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().String("mail-provider", config.DefaultMailProvider, "mail provider (log or ses)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := loadConfig(deps.ConfigLoader, cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.Setup(serviceName, version, cfg.Log.Format, deps.LogWriter)
	slog.SetDefault(logger)

	registry := deps.Registry()
	if err := cfg.Apply(registry); err != nil {
		return err
	}

	databaseURL, err := cfg.DatabaseURL()
	if err != nil {
		return err
	}
	dialect, err := store.DialectOf(databaseURL)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := runAutoMigration(deps.MigratorFactory, databaseURL); err != nil {
			return err
		}
	}

	principals, err := deps.StoreFactory(ctx, databaseURL, cfg.Models())
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open principal store").Wrap(err)
	}
	defer func() {
		if closeErr := principals.Close(); closeErr != nil {
			errutil.LogError(ctx, logger, "error closing principal store", closeErr)
		}
	}()
	logger.Info("principal store ready", "scopes", len(registry.Names()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	sessionOpts := []session.Option{session.WithLogger(logger)}
	var webMetrics web.Metrics
	if cfg.Web.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Web.MetricsAddr, ready.Load)
		if m := obsServer.Metrics(); m != nil {
			sessionOpts = append(sessionOpts, session.WithMetrics(m))
			webMetrics = m
		}
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer stopServer(logger, "observability", obsServer.Stop)
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	directory, err := auth.NewDirectory(registry, principals, password.NewArgon2idHasher(), auth.WithLogger(logger))
	if err != nil {
		return err
	}
	manager, err := session.NewManager(registry, directory, sessionOpts...)
	if err != nil {
		return err
	}

	redisClient := deps.RedisFactory(cfg.Redis.Addr)
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			errutil.LogError(ctx, logger, "error closing redis client", closeErr)
		}
	}()
	sessions := web.NewRedisSessions(redisClient, cfg.Redis.Prefix, cfg.Redis.SessionTTL, registry.CookiePolicy())
	if err := sessions.Ping(ctx); err != nil {
		return err
	}

	cookies, err := web.NewCookieCipher([]byte(cfg.Web.CookieSecret))
	if err != nil {
		return err
	}
	mailer, err := deps.MailerFactory(ctx, cfg.Mail, logger)
	if err != nil {
		return err
	}

	handler, err := web.NewHandler(web.Config{
		Registry: registry,
		Caps:     directory,
		Manager:  manager,
		Sessions: sessions,
		Cookies:  cookies,
		Mailer:   mailer,
		BaseURL:  cfg.Web.BaseURL,
		Metrics:  webMetrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	webServer := deps.WebServerFactory(cfg.Web.Addr, handler.Router())
	webErrChan, err := webServer.Start()
	if err != nil {
		return oops.Code("WEB_START_FAILED").Wrap(err)
	}
	defer stopServer(logger, "web", webServer.Stop)
	go monitorServerErrors(ctx, cancel, webErrChan, "web")
	ready.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("authscope started")
	logger.Info("authscope ready", "addr", webServer.Addr(), "database", string(dialect))

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}
	ready.Store(false)
	return nil
}

// runAutoMigration applies pending migrations before the store is opened.
func runAutoMigration(factory func(string) (AutoMigrator, error), databaseURL string) error {
	migrator, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	slog.Info("database migrations applied")
	return nil
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
