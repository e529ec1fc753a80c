// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/password"
	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/token"
)

// Authenticable provides credential operations for the principals of one scope.
type Authenticable struct {
	scope     *scope.Config
	repo      PrincipalRepository
	hasher    password.Hasher
	validator Validator
	remember  *token.Mechanism
	reset     *token.Mechanism
	now       func() time.Time
	logger    *slog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

// Option configures an Authenticable.
type Option func(*Authenticable)

// WithValidator replaces the DefaultValidator.
func WithValidator(v Validator) Option {
	return func(a *Authenticable) {
		a.validator = v
	}
}

// WithClock overrides the time source for tokens and sign-in bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticable) {
		a.now = now
	}
}

// WithLogger sets the logger for best-effort operations.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticable) {
		a.logger = logger
	}
}

// NewAuthenticable creates the capability for cfg.
func NewAuthenticable(cfg *scope.Config, repo PrincipalRepository, hasher password.Hasher, opts ...Option) (*Authenticable, error) {
	if cfg == nil {
		return nil, oops.Code("AUTH_SCOPE_REQUIRED").Errorf("scope configuration is required")
	}
	if repo == nil {
		return nil, oops.Code("AUTH_REPOSITORY_REQUIRED").Errorf("principal repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_HASHER_REQUIRED").Errorf("password hasher is required")
	}

	a := &Authenticable{
		scope:     cfg,
		repo:      repo,
		hasher:    hasher,
		validator: DefaultValidator{},
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.validator == nil {
		return nil, oops.Code("AUTH_VALIDATOR_REQUIRED").Errorf("validator is required")
	}
	if a.logger == nil {
		return nil, oops.Code("AUTH_LOGGER_REQUIRED").Errorf("logger is required")
	}

	var err error
	a.remember, err = token.New(token.Remember, cfg.RememberFor, hasher, repo, token.WithClock(a.now))
	if err != nil {
		return nil, oops.With("scope", cfg.Name().String()).Wrap(err)
	}
	a.reset, err = token.New(token.PasswordReset, cfg.PasswordResetWithin, hasher, repo, token.WithClock(a.now))
	if err != nil {
		return nil, oops.With("scope", cfg.Name().String()).Wrap(err)
	}
	return a, nil
}

// Scope returns the scope configuration.
func (a *Authenticable) Scope() *scope.Config {
	return a.scope
}

// FindByID looks up a principal by its string id. A malformed or unknown id
// yields (nil, false, nil).
func (a *Authenticable) FindByID(ctx context.Context, rawID string) (*Principal, bool, error) {
	id, err := ulid.Parse(rawID)
	if err != nil {
		return nil, false, nil
	}
	p, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("AUTH_LOOKUP_FAILED").
			With("scope", a.scope.Name().String()).
			With("operation", "get principal by id").
			Wrap(err)
	}
	return p, true, nil
}

// SetPassword hashes pw onto the principal without persisting it.
func (a *Authenticable) SetPassword(p *Principal, pw string) error {
	digest, err := a.hasher.Hash(pw)
	if err != nil {
		return oops.Code("AUTH_SET_PASSWORD_FAILED").Wrap(err)
	}
	p.PasswordDigest = digest
	return nil
}

// MatchesPassword reports whether candidate is the principal's password.
func (a *Authenticable) MatchesPassword(p *Principal, candidate string) bool {
	if p == nil || p.PasswordDigest == "" || candidate == "" {
		return false
	}
	ok, err := a.hasher.Verify(candidate, p.PasswordDigest)
	return err == nil && ok
}

// Authenticate finds the principal by email and checks the password.
// Unknown emails still run a verification against a dummy digest so that
// response time does not reveal which emails are registered.
func (a *Authenticable) Authenticate(ctx context.Context, email, pw string) (*Principal, bool, error) {
	p, err := a.repo.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		//nolint:errcheck // result is discarded; only the elapsed time matters
		a.hasher.Verify(pw, a.dummy())
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("AUTH_LOOKUP_FAILED").
			With("scope", a.scope.Name().String()).
			With("operation", "get principal by email").
			Wrap(err)
	}

	if !a.MatchesPassword(p, pw) {
		return nil, false, nil
	}

	if a.hasher.NeedsUpgrade(p.PasswordDigest) {
		a.upgradeDigest(ctx, p, pw)
	}
	return p, true, nil
}

// upgradeDigest re-hashes the password with current parameters. Failures are
// logged; authentication has already succeeded.
func (a *Authenticable) upgradeDigest(ctx context.Context, p *Principal, pw string) {
	digest, err := a.hasher.Hash(pw)
	if err == nil {
		err = a.repo.UpdatePassword(ctx, p.ID, digest)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "best-effort password digest upgrade failed",
			"operation", "upgrade_digest",
			"scope", a.scope.Name().String(),
			"principal_id", p.ID.String(),
			"error", err.Error(),
		)
		return
	}
	p.PasswordDigest = digest
}

func (a *Authenticable) dummy() string {
	a.dummyOnce.Do(func() {
		secret, err := token.Generate()
		if err == nil {
			a.dummyDigest, err = a.hasher.Hash(secret)
		}
		if err != nil {
			// Verify against a malformed digest still costs a parse; keep going.
			a.dummyDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
		}
	})
	return a.dummyDigest
}

// Register validates and creates a new principal. Validation failures,
// including a taken email, are returned as ValidationErrors.
func (a *Authenticable) Register(ctx context.Context, email, pw, confirmation string) (*Principal, ValidationErrors, error) {
	email = NormalizeEmail(email)
	if errs := a.validator.ValidateRegistration(email, pw, confirmation, a.scope.PasswordMinimum); !errs.OK() {
		return nil, errs, nil
	}

	digest, err := a.hasher.Hash(pw)
	if err != nil {
		return nil, nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	p, err := NewPrincipal(email, digest)
	if err != nil {
		return nil, nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new principal").
			Wrap(err)
	}
	p.CreatedAt = a.now().UTC()
	p.UpdatedAt = p.CreatedAt

	if err := a.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			errs := ValidationErrors{}
			errs.Add(FieldEmail, MsgTaken)
			return nil, errs, nil
		}
		return nil, nil, oops.Code("AUTH_REGISTER_FAILED").
			With("scope", a.scope.Name().String()).
			With("operation", "create principal").
			Wrap(err)
	}
	return p, nil, nil
}

// RememberMe issues a remember token and returns its plaintext.
func (a *Authenticable) RememberMe(ctx context.Context, p *Principal) (string, error) {
	return a.issue(ctx, a.remember, p)
}

// ForgetMe clears the remember token.
func (a *Authenticable) ForgetMe(ctx context.Context, p *Principal) error {
	return a.clear(ctx, a.remember, p)
}

// RememberTokenValid reports whether candidate is the principal's current
// remember token and was issued within the scope's RememberFor.
func (a *Authenticable) RememberTokenValid(p *Principal, candidate string) bool {
	return a.remember.Valid(p.RememberToken, candidate)
}

// GeneratePasswordResetToken issues a reset token and returns its plaintext.
// Delivering it is the caller's job.
func (a *Authenticable) GeneratePasswordResetToken(ctx context.Context, p *Principal) (string, error) {
	return a.issue(ctx, a.reset, p)
}

// PasswordResetTokenValid reports whether candidate is the principal's
// current reset token and was issued within the scope's PasswordResetWithin.
func (a *Authenticable) PasswordResetTokenValid(p *Principal, candidate string) bool {
	return a.reset.Valid(p.ResetToken, candidate)
}

// ClearPasswordResetToken clears the reset token.
func (a *Authenticable) ClearPasswordResetToken(ctx context.Context, p *Principal) error {
	return a.clear(ctx, a.reset, p)
}

func (a *Authenticable) issue(ctx context.Context, m *token.Mechanism, p *Principal) (string, error) {
	secret, st, err := m.Issue(ctx, p.ID)
	if err != nil {
		return "", oops.With("scope", a.scope.Name().String()).Wrap(err)
	}
	p.setTokenState(m.Kind(), st)
	return secret, nil
}

func (a *Authenticable) clear(ctx context.Context, m *token.Mechanism, p *Principal) error {
	st, err := m.Clear(ctx, p.ID)
	if err != nil {
		return oops.With("scope", a.scope.Name().String()).Wrap(err)
	}
	p.setTokenState(m.Kind(), st)
	return nil
}

// TrackSignIn records a sign-in from remoteIP in one write.
func (a *Authenticable) TrackSignIn(ctx context.Context, p *Principal, remoteIP string) error {
	next := p.NextSignIn(a.now().UTC(), remoteIP)
	if err := a.repo.UpdateSignIn(ctx, p.ID, next); err != nil {
		return oops.Code("AUTH_TRACK_SIGN_IN_FAILED").
			With("scope", a.scope.Name().String()).
			With("principal_id", p.ID.String()).
			Wrap(err)
	}
	p.ApplySignIn(next)
	return nil
}

// ResetPassword sets a new password after validating it against the
// confirmation. On validation failure the stored and in-memory digests are
// left untouched and the messages are returned. On success the digest is
// persisted and the reset token cleared.
func (a *Authenticable) ResetPassword(ctx context.Context, p *Principal, pw, confirmation string) (ValidationErrors, error) {
	if errs := a.validator.ValidatePassword(pw, confirmation, a.scope.PasswordMinimum); !errs.OK() {
		return errs, nil
	}

	digest, err := a.hasher.Hash(pw)
	if err != nil {
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	if err := a.repo.UpdatePassword(ctx, p.ID, digest); err != nil {
		return nil, oops.Code("AUTH_RESET_PASSWORD_FAILED").
			With("scope", a.scope.Name().String()).
			With("principal_id", p.ID.String()).
			With("operation", "update password").
			Wrap(err)
	}
	p.PasswordDigest = digest

	if err := a.ClearPasswordResetToken(ctx, p); err != nil {
		return nil, err
	}
	return nil, nil
}

// RequestPasswordReset issues a reset token for the principal with email and
// returns the composite "<id>:<token>" value to deliver. An unknown email
// returns (nil, "", nil) so callers can respond the same way whether or not
// the email is registered.
func (a *Authenticable) RequestPasswordReset(ctx context.Context, email string) (*Principal, string, error) {
	p, err := a.repo.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("scope", a.scope.Name().String()).
			With("operation", "get principal by email").
			Wrap(err)
	}

	secret, err := a.GeneratePasswordResetToken(ctx, p)
	if err != nil {
		return nil, "", err
	}
	return p, token.Compose(p.ID.String(), secret), nil
}

// PrincipalForResetToken resolves a composite "<id>:<token>" reset value to
// its principal. Malformed values, unknown ids and invalid or expired tokens
// all yield (nil, false, nil).
func (a *Authenticable) PrincipalForResetToken(ctx context.Context, value string) (*Principal, bool, error) {
	rawID, secret, ok := token.Split(value)
	if !ok {
		return nil, false, nil
	}
	p, found, err := a.FindByID(ctx, rawID)
	if err != nil || !found {
		return nil, false, err
	}
	if !a.PasswordResetTokenValid(p, secret) {
		return nil, false, nil
	}
	return p, true, nil
}
