// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package authtest provides test helpers for the auth package.
package authtest

import (
	"context"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/password"
	"github.com/authscope/authscope/internal/token"
)

// Hasher returns an argon2id hasher with parameters cheap enough for tests.
func Hasher(t testing.TB) *password.Argon2idHasher {
	t.Helper()
	h, err := password.NewArgon2idHasherWithParams(password.Params{
		Time: 1, Memory: 64, Threads: 1, SaltLen: 16, KeyLen: 32,
	})
	require.NoError(t, err)
	return h
}

// MemoryRepository is a PrincipalRepository backed by a map.
// Principals are copied on the way in and out.
type MemoryRepository struct {
	mu       sync.Mutex
	byID     map[ulid.ULID]auth.Principal
	Err      error // returned by every call when set
	TokenErr error // returned by SaveToken when set
	Writes   int
	Reads    int
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[ulid.ULID]auth.Principal)}
}

// Create implements auth.PrincipalRepository.
func (r *MemoryRepository) Create(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, existing := range r.byID {
		if existing.Email == p.Email {
			return auth.ErrDuplicateEmail
		}
	}
	r.Writes++
	r.byID[p.ID] = *p
	return nil
}

// GetByID implements auth.PrincipalRepository.
func (r *MemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	if r.Err != nil {
		return nil, r.Err
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &p, nil
}

// GetByEmail implements auth.PrincipalRepository.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*auth.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	if r.Err != nil {
		return nil, r.Err
	}
	for _, p := range r.byID {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePassword implements auth.PrincipalRepository.
func (r *MemoryRepository) UpdatePassword(_ context.Context, id ulid.ULID, digest string) error {
	return r.update(id, func(p *auth.Principal) {
		p.PasswordDigest = digest
	})
}

// SaveToken implements auth.PrincipalRepository.
func (r *MemoryRepository) SaveToken(_ context.Context, id ulid.ULID, kind token.Kind, st token.State) error {
	r.mu.Lock()
	tokenErr := r.TokenErr
	r.mu.Unlock()
	if tokenErr != nil {
		return tokenErr
	}
	return r.update(id, func(p *auth.Principal) {
		if kind == token.Remember {
			p.RememberToken = st
			return
		}
		p.ResetToken = st
	})
}

// UpdateSignIn implements auth.PrincipalRepository.
func (r *MemoryRepository) UpdateSignIn(_ context.Context, id ulid.ULID, s auth.SignIn) error {
	return r.update(id, func(p *auth.Principal) {
		p.ApplySignIn(s)
	})
}

func (r *MemoryRepository) update(id ulid.ULID, fn func(*auth.Principal)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	p, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	fn(&p)
	r.byID[id] = p
	r.Writes++
	return nil
}

// Stored returns a copy of the stored principal, or nil.
func (r *MemoryRepository) Stored(id ulid.ULID) *auth.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil
	}
	return &p
}

// Resolver maps record types to repositories.
type Resolver map[string]auth.PrincipalRepository

// Repository implements auth.RepositoryResolver.
func (r Resolver) Repository(recordType string) (auth.PrincipalRepository, error) {
	repo, ok := r[recordType]
	if !ok {
		return nil, auth.ErrUnknownRecordType
	}
	return repo, nil
}

// Verify interfaces are satisfied.
var (
	_ auth.PrincipalRepository = (*MemoryRepository)(nil)
	_ auth.RepositoryResolver  = Resolver(nil)
)
