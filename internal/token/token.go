// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package token implements single-use, hashed, time-bounded secrets.
//
// A Mechanism issues a random plaintext secret, persists only its salted
// digest and issuance time, and later checks candidates against that pair.
// The same shape backs "remember me" cookies and password-reset links.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SecretBytes is the entropy of an issued secret.
const SecretBytes = 32

// Kind names the token slot on a principal record.
type Kind string

// Token kinds.
const (
	Remember      Kind = "remember"
	PasswordReset Kind = "password_reset"
)

// State is the persisted half of a token. Both fields nil means no token.
// A digest without an issuance time (or the reverse) never validates.
type State struct {
	Digest   *string
	IssuedAt *time.Time
}

// Present reports whether both fields are set.
func (s State) Present() bool {
	return s.Digest != nil && *s.Digest != "" && s.IssuedAt != nil
}

// Hasher produces and checks salted digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// Store persists token state for a principal.
type Store interface {
	SaveToken(ctx context.Context, id ulid.ULID, kind Kind, state State) error
}

// Mechanism issues, validates and clears one kind of token.
type Mechanism struct {
	kind   Kind
	window time.Duration
	hasher Hasher
	store  Store
	now    func() time.Time
}

// Option configures a Mechanism.
type Option func(*Mechanism)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Mechanism) {
		m.now = now
	}
}

// New creates a Mechanism for kind whose tokens expire after window.
func New(kind Kind, window time.Duration, hasher Hasher, store Store, opts ...Option) (*Mechanism, error) {
	if hasher == nil {
		return nil, oops.Code("TOKEN_HASHER_REQUIRED").Errorf("token hasher is required")
	}
	if store == nil {
		return nil, oops.Code("TOKEN_STORE_REQUIRED").Errorf("token store is required")
	}
	if window <= 0 {
		return nil, oops.Code("TOKEN_INVALID_WINDOW").
			With("kind", string(kind)).
			With("window", window.String()).
			Errorf("token window must be positive")
	}

	m := &Mechanism{
		kind:   kind,
		window: window,
		hasher: hasher,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Kind returns the token kind.
func (m *Mechanism) Kind() Kind {
	return m.kind
}

// Window returns the validity window.
func (m *Mechanism) Window() time.Duration {
	return m.window
}

// Issue generates a fresh secret, persists its digest and issuance time for
// the principal, and returns the plaintext with the new state.
func (m *Mechanism) Issue(ctx context.Context, id ulid.ULID) (string, State, error) {
	secret, err := Generate()
	if err != nil {
		return "", State{}, err
	}

	digest, err := m.hasher.Hash(secret)
	if err != nil {
		return "", State{}, oops.Code("TOKEN_HASH_FAILED").
			With("kind", string(m.kind)).
			Wrap(err)
	}

	issuedAt := m.now().UTC()
	state := State{Digest: &digest, IssuedAt: &issuedAt}
	if err := m.store.SaveToken(ctx, id, m.kind, state); err != nil {
		return "", State{}, oops.Code("TOKEN_PERSIST_FAILED").
			With("kind", string(m.kind)).
			With("principal_id", id.String()).
			Wrap(err)
	}

	return secret, state, nil
}

// Valid reports whether candidate matches the stored digest and the token
// was issued within the window. Absent, partial or expired state is false.
func (m *Mechanism) Valid(state State, candidate string) bool {
	if !state.Present() || candidate == "" {
		return false
	}
	if m.now().Sub(*state.IssuedAt) > m.window {
		return false
	}
	ok, err := m.hasher.Verify(candidate, *state.Digest)
	if err != nil {
		return false
	}
	return ok
}

// Clear removes the token from the principal.
func (m *Mechanism) Clear(ctx context.Context, id ulid.ULID) (State, error) {
	if err := m.store.SaveToken(ctx, id, m.kind, State{}); err != nil {
		return State{}, oops.Code("TOKEN_PERSIST_FAILED").
			With("kind", string(m.kind)).
			With("principal_id", id.String()).
			Wrap(err)
	}
	return State{}, nil
}

// Generate returns SecretBytes of randomness, URL-safe base64 encoded.
func Generate() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretBytes).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
