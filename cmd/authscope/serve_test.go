// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/auth/authtest"
	"github.com/authscope/authscope/internal/config"
	"github.com/authscope/authscope/internal/observability"
	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/pkg/errutil"
)

// fakeStore implements PrincipalStore over in-memory repositories.
type fakeStore struct {
	authtest.Resolver
	closed bool
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}

// mockServer implements WebServer and ObservabilityServer for testing.
type mockServer struct {
	startErr error
	metrics  *observability.Metrics

	mu      sync.Mutex
	handler http.Handler
	started chan struct{}
	stopped bool
	errCh   chan error
}

func newMockServer() *mockServer {
	return &mockServer{started: make(chan struct{}), errCh: make(chan error, 1)}
}

func (m *mockServer) Start() (<-chan error, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	close(m.started)
	return m.errCh, nil
}

func (m *mockServer) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockServer) Addr() string { return "127.0.0.1:0" }

func (m *mockServer) Metrics() *observability.Metrics { return m.metrics }

func (m *mockServer) wasStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type serveFixture struct {
	cfg      config.File
	store    *fakeStore
	web      *mockServer
	obs      *mockServer
	migrator *autoMigrator
	redis    *miniredis.Miniredis
	ready    observability.ReadinessChecker
}

// autoMigrator implements AutoMigrator for testing.
type autoMigrator struct {
	upErr  error
	up     bool
	closed bool
}

func (m *autoMigrator) Up() error    { m.up = true; return m.upErr }
func (m *autoMigrator) Close() error { m.closed = true; return nil }

func newServeFixture(t *testing.T) *serveFixture {
	t.Helper()
	f := &serveFixture{
		cfg:      config.Default(),
		store:    &fakeStore{Resolver: authtest.Resolver{"accounts": authtest.NewMemoryRepository()}},
		web:      newMockServer(),
		obs:      newMockServer(),
		migrator: &autoMigrator{},
		redis:    miniredis.RunT(t),
	}
	f.obs.metrics = observability.NewMetrics(prometheus.NewRegistry())
	f.cfg.Scopes = []config.Scope{{Name: "account", Model: "accounts"}}
	f.cfg.Database.URL = "sqlite:///tmp/authscope-test.db"
	f.cfg.Redis.Addr = f.redis.Addr()
	f.cfg.Web.CookieSecret = "0123456789abcdef0123456789abcdef"
	f.cfg.Log.Format = "text"
	configFile = "/unused.yaml"
	scope.ResetDefault()
	t.Cleanup(func() {
		configFile = ""
		scope.ResetDefault()
	})
	return f
}

func (f *serveFixture) deps() *ServeDeps {
	return &ServeDeps{
		ConfigLoader: func(string, *pflag.FlagSet) (*config.File, error) {
			cfg := f.cfg
			return &cfg, nil
		},
		MigratorFactory: func(string) (AutoMigrator, error) { return f.migrator, nil },
		StoreFactory: func(context.Context, string, []string) (PrincipalStore, error) {
			return f.store, nil
		},
		RedisFactory: func(addr string) redis.UniversalClient {
			return redis.NewClient(&redis.Options{Addr: addr})
		},
		WebServerFactory: func(_ string, h http.Handler) WebServer {
			f.web.mu.Lock()
			f.web.handler = h
			f.web.mu.Unlock()
			return f.web
		},
		ObservabilityServerFactory: func(_ string, ready observability.ReadinessChecker) ObservabilityServer {
			f.ready = ready
			return f.obs
		},
		LogWriter: io.Discard,
	}
}

func newMockCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func TestRunServeWithDeps_HappyPath(t *testing.T) {
	f := newServeFixture(t)
	f.cfg.Database.AutoMigrate = true

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- runServeWithDeps(ctx, newMockCmd(), f.deps())
	}()

	select {
	case <-f.web.started:
	case err := <-errChan:
		t.Fatalf("runServeWithDeps() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("web server was not started")
	}
	require.Eventually(t, f.ready, time.Second, 10*time.Millisecond, "readiness after web start")

	f.web.mu.Lock()
	handler := f.web.handler
	f.web.mu.Unlock()
	require.NotNil(t, handler)

	cancel()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServeWithDeps() did not return within timeout")
	}

	assert.Equal(t, []scope.Name{"account"}, scope.Default().Names(), "configured scopes land on the process registry")
	assert.True(t, f.migrator.up, "auto-migrate runs before start")
	assert.True(t, f.migrator.closed)
	assert.True(t, f.store.closed)
	assert.True(t, f.web.wasStopped())
	assert.True(t, f.obs.wasStopped())
	assert.False(t, f.ready(), "not ready after shutdown")
}

func TestRunServeWithDeps_ServerErrorTriggersShutdown(t *testing.T) {
	f := newServeFixture(t)
	f.cfg.Web.MetricsAddr = ""

	errChan := make(chan error, 1)
	go func() {
		errChan <- runServeWithDeps(context.Background(), newMockCmd(), f.deps())
	}()

	<-f.web.started
	f.web.errCh <- errors.New("listener died")

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server error did not trigger shutdown")
	}
	assert.Nil(t, f.ready, "observability server disabled")
	assert.False(t, f.migrator.up, "auto-migrate off by default")
}

func TestRunServeWithDeps_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *serveFixture, d *ServeDeps)
		code  string
	}{
		{
			name: "config load",
			setup: func(_ *serveFixture, d *ServeDeps) {
				d.ConfigLoader = func(string, *pflag.FlagSet) (*config.File, error) {
					return config.Load("/does/not/exist.yaml", nil)
				}
			},
			code: "CONFIG_NOT_FOUND",
		},
		{
			name:  "scope without model",
			setup: func(f *serveFixture, _ *ServeDeps) { f.cfg.Scopes[0].Model = "" },
			code:  "SCOPE_MODEL_REQUIRED",
		},
		{
			name: "scope already on process registry",
			setup: func(*serveFixture, *ServeDeps) {
				_ = scope.Configure("account", func(c *scope.Config) { c.Model = "accounts" })
			},
			code: "SCOPE_ALREADY_REGISTERED",
		},
		{
			name:  "unsupported database",
			setup: func(f *serveFixture, _ *ServeDeps) { f.cfg.Database.URL = "mysql://db" },
			code:  "UNSUPPORTED_DATABASE",
		},
		{
			name: "migration",
			setup: func(f *serveFixture, _ *ServeDeps) {
				f.cfg.Database.AutoMigrate = true
				f.migrator.upErr = errors.New("dirty database")
			},
			code: "MIGRATION_FAILED",
		},
		{
			name: "store",
			setup: func(_ *serveFixture, d *ServeDeps) {
				d.StoreFactory = func(context.Context, string, []string) (PrincipalStore, error) {
					return nil, errors.New("connection refused")
				}
			},
			code: "DB_CONNECT_FAILED",
		},
		{
			name:  "observability start",
			setup: func(f *serveFixture, _ *ServeDeps) { f.obs.startErr = errors.New("address in use") },
			code:  "OBSERVABILITY_START_FAILED",
		},
		{
			name:  "redis unavailable",
			setup: func(f *serveFixture, _ *ServeDeps) { f.redis.Close() },
			code:  "WEB_SESSION_STORE_UNAVAILABLE",
		},
		{
			name:  "short cookie secret",
			setup: func(f *serveFixture, _ *ServeDeps) { f.cfg.Web.CookieSecret = "short" },
			code:  "WEB_SECRET_TOO_SHORT",
		},
		{
			name:  "unknown mail provider",
			setup: func(f *serveFixture, _ *ServeDeps) { f.cfg.Mail.Provider = "pigeon" },
			code:  "MAIL_PROVIDER_UNKNOWN",
		},
		{
			name:  "web start",
			setup: func(f *serveFixture, _ *ServeDeps) { f.web.startErr = errors.New("address in use") },
			code:  "WEB_START_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServeFixture(t)
			deps := f.deps()
			tt.setup(f, deps)

			err := runServeWithDeps(context.Background(), newMockCmd(), deps)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestNewMailer(t *testing.T) {
	ctx := context.Background()

	m, err := newMailer(ctx, config.Mail{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = newMailer(ctx, config.Mail{Provider: "log"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = newMailer(ctx, config.Mail{Provider: "pigeon"}, nil)
	errutil.AssertErrorCode(t, err, "MAIL_PROVIDER_UNKNOWN")
	errutil.AssertErrorContext(t, err, "provider", "pigeon")
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("test server error")

		go monitorServerErrors(ctx, cancel, errCh, "test-server")

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context was not cancelled after server error")
		}
	})

	t.Run("nil error and close do not cancel", func(t *testing.T) {
		for _, send := range []func(chan error){
			func(ch chan error) { ch <- nil },
			func(ch chan error) { close(ch) },
		} {
			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			send(errCh)

			done := make(chan struct{})
			go func() {
				monitorServerErrors(ctx, cancel, errCh, "test-server")
				close(done)
			}()
			<-done
			assert.NoError(t, ctx.Err())
			cancel()
		}
	})
}
