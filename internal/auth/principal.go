// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/token"
)

// Principal is an authenticable record.
type Principal struct {
	ID             ulid.ULID
	Email          string
	PasswordDigest string

	RememberToken token.State
	ResetToken    token.State

	SignInCount     int
	CurrentSignInAt *time.Time
	CurrentSignInIP *string
	LastSignInAt    *time.Time
	LastSignInIP    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPrincipal creates a Principal with a fresh id and normalized email.
func NewPrincipal(email, passwordDigest string) (*Principal, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("PRINCIPAL_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordDigest == "" {
		return nil, oops.Code("PRINCIPAL_INVALID_DIGEST").Errorf("password digest cannot be empty")
	}

	now := time.Now().UTC()
	return &Principal{
		ID:             ulid.Make(),
		Email:          email,
		PasswordDigest: passwordDigest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NormalizeEmail trims surrounding space and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// setTokenState replaces the stored state for kind.
func (p *Principal) setTokenState(kind token.Kind, st token.State) {
	if kind == token.Remember {
		p.RememberToken = st
		return
	}
	p.ResetToken = st
}

// SignIn is the sign-in bookkeeping written in one update.
type SignIn struct {
	Count     int
	CurrentAt *time.Time
	CurrentIP *string
	LastAt    *time.Time
	LastIP    *string
}

// NextSignIn computes the bookkeeping after a sign-in at the given time
// from remoteIP: the count grows by one and the current values shift into
// the last values.
func (p *Principal) NextSignIn(at time.Time, remoteIP string) SignIn {
	ip := remoteIP
	return SignIn{
		Count:     p.SignInCount + 1,
		CurrentAt: &at,
		CurrentIP: &ip,
		LastAt:    p.CurrentSignInAt,
		LastIP:    p.CurrentSignInIP,
	}
}

// ApplySignIn copies s onto the principal.
func (p *Principal) ApplySignIn(s SignIn) {
	p.SignInCount = s.Count
	p.CurrentSignInAt = s.CurrentAt
	p.CurrentSignInIP = s.CurrentIP
	p.LastSignInAt = s.LastAt
	p.LastSignInIP = s.LastIP
}

// PrincipalRepository is the persistence contract for one record type.
type PrincipalRepository interface {
	// Create stores a new principal.
	// Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, p *Principal) error

	// GetByID retrieves a principal by id.
	// Returns ErrNotFound if none exists.
	GetByID(ctx context.Context, id ulid.ULID) (*Principal, error)

	// GetByEmail retrieves a principal by normalized email.
	// Returns ErrNotFound if none exists.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// UpdatePassword replaces the password digest.
	UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error

	// SaveToken writes the digest and issuance time of one token kind.
	SaveToken(ctx context.Context, id ulid.ULID, kind token.Kind, state token.State) error

	// UpdateSignIn writes the sign-in bookkeeping in a single update.
	UpdateSignIn(ctx context.Context, id ulid.ULID, s SignIn) error
}

// RepositoryResolver maps a scope's record type to its repository.
type RepositoryResolver interface {
	Repository(recordType string) (PrincipalRepository, error)
}
