// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/logging"
	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/token"
)

// Capabilities supplies the Authenticable for a scope.
// auth.Directory satisfies it.
type Capabilities interface {
	For(name scope.Name) (*auth.Authenticable, error)
}

// Metrics receives session events.
type Metrics interface {
	SignedIn(name scope.Name, remembered bool)
	SignedOut(name scope.Name)
	Restored(name scope.Name)
}

type noopMetrics struct{}

func (noopMetrics) SignedIn(scope.Name, bool) {}
func (noopMetrics) SignedOut(scope.Name)      {}
func (noopMetrics) Restored(scope.Name)       {}

// Manager implements scope-parameterized session operations.
type Manager struct {
	registry *scope.Registry
	caps     Capabilities
	now      func() time.Time
	logger   *slog.Logger
	metrics  Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source for cookie expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a Manager.
func NewManager(registry *scope.Registry, caps Capabilities, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, oops.Code("SESSION_REGISTRY_REQUIRED").Errorf("scope registry is required")
	}
	if caps == nil {
		return nil, oops.Code("SESSION_CAPABILITIES_REQUIRED").Errorf("capabilities are required")
	}
	m := &Manager{
		registry: registry,
		caps:     caps,
		now:      time.Now,
		logger:   slog.Default(),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		return nil, oops.Code("SESSION_LOGGER_REQUIRED").Errorf("logger is required")
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	return m, nil
}

func (m *Manager) resolve(name scope.Name) (*scope.Config, *auth.Authenticable, error) {
	cfg, err := m.registry.Get(name)
	if err != nil {
		return nil, nil, err
	}
	a, err := m.caps.For(name)
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}

// Current returns the signed-in principal for name, or nil. The session is
// consulted first, then the remember cookie. The outcome, including
// anonymous, is cached on req.
func (m *Manager) Current(ctx context.Context, req *Request, name scope.Name) (*auth.Principal, error) {
	if p, ok := req.cached(name); ok {
		return p, nil
	}
	cfg, a, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	if id, ok := req.store.Get(cfg.SessionKey); ok {
		p, found, err := a.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			req.cache(name, p)
			return p, nil
		}
	}

	p, err := m.fromRememberCookie(ctx, req, cfg, a)
	if err != nil {
		return nil, err
	}
	req.cache(name, p)
	return p, nil
}

func (m *Manager) fromRememberCookie(ctx context.Context, req *Request, cfg *scope.Config, a *auth.Authenticable) (*auth.Principal, error) {
	value, ok := req.jar.Encrypted(cfg.RememberCookie)
	if !ok {
		return nil, nil
	}
	id, secret, ok := token.Split(value)
	if !ok {
		return nil, nil
	}
	p, found, err := a.FindByID(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	if !a.RememberTokenValid(p, secret) {
		return nil, nil
	}
	m.metrics.Restored(cfg.Name())
	m.logger.DebugContext(logging.WithScope(ctx, cfg.Name().String()), "principal restored from remember cookie",
		"principal_id", p.ID.String())
	return p, nil
}

// SignedIn reports whether a principal is signed in to name.
func (m *Manager) SignedIn(ctx context.Context, req *Request, name scope.Name) (bool, error) {
	p, err := m.Current(ctx, req, name)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// SignIn establishes a fresh session for p. The whole session is renewed
// before the principal id is written.
func (m *Manager) SignIn(ctx context.Context, req *Request, name scope.Name, p *auth.Principal, opts SignInOptions) error {
	cfg, a, err := m.resolve(name)
	if err != nil {
		return err
	}
	ctx = logging.WithScope(ctx, name.String())

	if err := req.store.Renew(); err != nil {
		return oops.Code("SESSION_RENEW_FAILED").
			With("scope", name.String()).
			Wrap(err)
	}
	// Every session value is gone, so cached results for other scopes are stale.
	clear(req.current)

	if err := a.TrackSignIn(ctx, p, req.remoteIP); err != nil {
		return err
	}

	if opts.Remember {
		secret, err := a.RememberMe(ctx, p)
		if err != nil {
			return err
		}
		policy := m.registry.CookiePolicy()
		err = req.jar.SetEncrypted(cfg.RememberCookie, Cookie{
			Value:    token.Compose(p.ID.String(), secret),
			Expires:  m.now().Add(cfg.RememberFor),
			Secure:   policy.Secure,
			HTTPOnly: policy.HTTPOnly,
			SameSite: policy.SameSite,
		})
		if err != nil {
			return oops.Code("SESSION_COOKIE_FAILED").
				With("scope", name.String()).
				With("cookie", cfg.RememberCookie).
				Wrap(err)
		}
	}

	// Set last so a failed sign-in leaves the renewed session anonymous.
	req.store.Set(cfg.SessionKey, p.ID.String())
	req.cache(name, p)
	m.metrics.SignedIn(name, opts.Remember)
	m.logger.InfoContext(ctx, "signed in",
		"principal_id", p.ID.String(),
		"remember", opts.Remember,
		"remote_ip", req.remoteIP)
	return nil
}

// SignOut forgets the current principal's remember token and removes the
// session key and remember cookie for name.
func (m *Manager) SignOut(ctx context.Context, req *Request, name scope.Name) error {
	p, err := m.Current(ctx, req, name)
	if err != nil {
		return err
	}
	cfg, a, err := m.resolve(name)
	if err != nil {
		return err
	}

	if p != nil {
		if err := a.ForgetMe(ctx, p); err != nil {
			return err
		}
	}
	req.store.Delete(cfg.SessionKey)
	req.jar.Delete(cfg.RememberCookie)
	req.cache(name, nil)

	if p != nil {
		m.metrics.SignedOut(name)
		m.logger.InfoContext(logging.WithScope(ctx, name.String()), "signed out",
			"principal_id", p.ID.String())
	}
	return nil
}

// RequireSignedIn returns nil when a principal is signed in to name and a
// redirect to the scope's sign-in path otherwise.
func (m *Manager) RequireSignedIn(ctx context.Context, req *Request, name scope.Name) (*Redirect, error) {
	p, err := m.Current(ctx, req, name)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return nil, nil
	}
	cfg, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return &Redirect{Location: cfg.SignInPath}, nil
}
