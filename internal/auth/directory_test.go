// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/auth/authtest"
	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/pkg/errutil"
)

func newRegistry(t *testing.T) *scope.Registry {
	t.Helper()
	reg := scope.NewRegistry()
	require.NoError(t, reg.Scope("account", func(c *scope.Config) { c.Model = "accounts" }))
	require.NoError(t, reg.Scope("admin", func(c *scope.Config) { c.Model = "admins" }))
	require.NoError(t, reg.Scope("broken", func(*scope.Config) {}))
	require.NoError(t, reg.Scope("orphan", func(c *scope.Config) { c.Model = "orphans" }))
	return reg
}

func TestNewDirectory_Validation(t *testing.T) {
	hasher := authtest.Hasher(t)
	resolver := authtest.Resolver{}

	_, err := auth.NewDirectory(nil, resolver, hasher)
	errutil.AssertErrorCode(t, err, "AUTH_REGISTRY_REQUIRED")

	_, err = auth.NewDirectory(scope.NewRegistry(), nil, hasher)
	errutil.AssertErrorCode(t, err, "AUTH_RESOLVER_REQUIRED")

	_, err = auth.NewDirectory(scope.NewRegistry(), resolver, nil)
	errutil.AssertErrorCode(t, err, "AUTH_HASHER_REQUIRED")
}

func TestDirectory_For(t *testing.T) {
	accounts := authtest.NewMemoryRepository()
	admins := authtest.NewMemoryRepository()
	dir, err := auth.NewDirectory(newRegistry(t), authtest.Resolver{
		"accounts": accounts,
		"admins":   admins,
	}, authtest.Hasher(t))
	require.NoError(t, err)

	t.Run("builds and caches per scope", func(t *testing.T) {
		account, err := dir.For("account")
		require.NoError(t, err)
		assert.Equal(t, scope.Name("account"), account.Scope().Name())

		again, err := dir.For("account")
		require.NoError(t, err)
		assert.Same(t, account, again)

		admin, err := dir.For("admin")
		require.NoError(t, err)
		assert.NotSame(t, account, admin)
	})

	t.Run("unknown scope", func(t *testing.T) {
		_, err := dir.For("ghost")
		errutil.AssertErrorCode(t, err, "SCOPE_NOT_REGISTERED")
	})

	t.Run("scope without a record type", func(t *testing.T) {
		_, err := dir.For("broken")
		errutil.AssertCodeAndCause(t, err, "SCOPE_MODEL_REQUIRED", scope.ErrConfiguration)
	})

	t.Run("record type without a repository", func(t *testing.T) {
		_, err := dir.For("orphan")
		errutil.AssertCodeAndCause(t, err, "AUTH_REPOSITORY_UNAVAILABLE", auth.ErrUnknownRecordType)
	})
}
