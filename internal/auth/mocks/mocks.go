// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package mocks provides testify mocks for auth interfaces.
package mocks

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/password"
	"github.com/authscope/authscope/internal/token"
)

// PrincipalRepository is a mock auth.PrincipalRepository.
type PrincipalRepository struct {
	mock.Mock
}

// Create implements auth.PrincipalRepository.
func (m *PrincipalRepository) Create(ctx context.Context, p *auth.Principal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// GetByID implements auth.PrincipalRepository.
func (m *PrincipalRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Principal), args.Error(1)
}

// GetByEmail implements auth.PrincipalRepository.
func (m *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Principal), args.Error(1)
}

// UpdatePassword implements auth.PrincipalRepository.
func (m *PrincipalRepository) UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error {
	args := m.Called(ctx, id, digest)
	return args.Error(0)
}

// SaveToken implements auth.PrincipalRepository.
func (m *PrincipalRepository) SaveToken(ctx context.Context, id ulid.ULID, kind token.Kind, st token.State) error {
	args := m.Called(ctx, id, kind, st)
	return args.Error(0)
}

// UpdateSignIn implements auth.PrincipalRepository.
func (m *PrincipalRepository) UpdateSignIn(ctx context.Context, id ulid.ULID, s auth.SignIn) error {
	args := m.Called(ctx, id, s)
	return args.Error(0)
}

// Hasher is a mock password.Hasher.
type Hasher struct {
	mock.Mock
}

// Hash implements password.Hasher.
func (m *Hasher) Hash(pw string) (string, error) {
	args := m.Called(pw)
	return args.String(0), args.Error(1)
}

// Verify implements password.Hasher.
func (m *Hasher) Verify(pw, digest string) (bool, error) {
	args := m.Called(pw, digest)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade implements password.Hasher.
func (m *Hasher) NeedsUpgrade(digest string) bool {
	args := m.Called(digest)
	return args.Bool(0)
}

// Verify interfaces are satisfied.
var (
	_ auth.PrincipalRepository = (*PrincipalRepository)(nil)
	_ password.Hasher          = (*Hasher)(nil)
)
