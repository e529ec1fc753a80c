// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/auth/sqlite"
	"github.com/authscope/authscope/internal/store"
	"github.com/authscope/authscope/internal/token"
	"github.com/authscope/authscope/pkg/errutil"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	url := "sqlite3://" + filepath.Join(t.TempDir(), "principals.db")

	m, err := store.NewMigrator(url)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := store.OpenSQLite(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newPrincipal(t *testing.T, email string) *auth.Principal {
	t.Helper()
	p, err := auth.NewPrincipal(email, "digest")
	require.NoError(t, err)
	return p
}

func TestPrincipalRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewPrincipalRepository(openDB(t), "accounts")
	p := newPrincipal(t, "alice@example.com")

	require.NoError(t, repo.Create(ctx, p))

	byID, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Email, byID.Email)
	assert.Equal(t, "digest", byID.PasswordDigest)
	assert.True(t, p.CreatedAt.Equal(byID.CreatedAt))
	assert.False(t, byID.RememberToken.Present())
	assert.Nil(t, byID.CurrentSignInAt)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byEmail.ID)
}

func TestPrincipalRepository_NotFoundAndDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewPrincipalRepository(openDB(t), "accounts")
	p := newPrincipal(t, "alice@example.com")
	require.NoError(t, repo.Create(ctx, p))

	_, err := repo.GetByID(ctx, ulid.Make())
	errutil.AssertCodeAndCause(t, err, "PRINCIPAL_NOT_FOUND", auth.ErrNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	errutil.AssertCodeAndCause(t, err, "PRINCIPAL_NOT_FOUND", auth.ErrNotFound)

	err = repo.Create(ctx, newPrincipal(t, "alice@example.com"))
	errutil.AssertCodeAndCause(t, err, "PRINCIPAL_DUPLICATE_EMAIL", auth.ErrDuplicateEmail)
	assert.NotErrorIs(t, err, auth.ErrNotFound)

	err = repo.UpdatePassword(ctx, ulid.Make(), "x")
	errutil.AssertCodeAndCause(t, err, "PRINCIPAL_NOT_FOUND", auth.ErrNotFound)
}

func TestPrincipalRepository_Updates(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewPrincipalRepository(openDB(t), "accounts")
	p := newPrincipal(t, "alice@example.com")
	require.NoError(t, repo.Create(ctx, p))

	digest := "remember-digest"
	issued := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SaveToken(ctx, p.ID, token.Remember, token.State{Digest: &digest, IssuedAt: &issued}))
	require.NoError(t, repo.UpdatePassword(ctx, p.ID, "new-digest"))
	next := p.NextSignIn(issued, "192.0.2.1")
	require.NoError(t, repo.UpdateSignIn(ctx, p.ID, next))

	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-digest", stored.PasswordDigest)
	require.True(t, stored.RememberToken.Present())
	assert.Equal(t, digest, *stored.RememberToken.Digest)
	assert.True(t, issued.Equal(*stored.RememberToken.IssuedAt))
	assert.False(t, stored.ResetToken.Present())
	assert.Equal(t, 1, stored.SignInCount)
	assert.Equal(t, "192.0.2.1", *stored.CurrentSignInIP)
	assert.True(t, issued.Equal(*stored.CurrentSignInAt))
	assert.Nil(t, stored.LastSignInIP)

	require.NoError(t, repo.SaveToken(ctx, p.ID, token.Remember, token.State{}))
	stored, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, stored.RememberToken.Present())

	err = repo.SaveToken(ctx, p.ID, token.Kind("confirm"), token.State{})
	errutil.AssertErrorCode(t, err, "PRINCIPAL_UNKNOWN_TOKEN_KIND")
}

func TestCatalog_IsolatesTables(t *testing.T) {
	ctx := context.Background()
	catalog := sqlite.NewCatalog(openDB(t), "accounts", "admins")

	accounts, err := catalog.Repository("accounts")
	require.NoError(t, err)
	admins, err := catalog.Repository("admins")
	require.NoError(t, err)

	p := newPrincipal(t, "same@example.com")
	require.NoError(t, accounts.Create(ctx, p))
	require.NoError(t, admins.Create(ctx, newPrincipal(t, "same@example.com")),
		"emails are unique per table, not across scopes")

	_, err = admins.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	_, err = catalog.Repository("users")
	errutil.AssertCodeAndCause(t, err, "PRINCIPAL_UNKNOWN_RECORD_TYPE", auth.ErrUnknownRecordType)
}
