// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package postgres stores principals in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/token"
)

// poolIface is the subset of pgxpool.Pool used by the repository.
// pgxmock.PgxPoolIface satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const principalColumns = `id, email, password_digest,
	remember_token_digest, remember_token_issued_at,
	reset_token_digest, reset_token_issued_at,
	sign_in_count, current_sign_in_at, current_sign_in_ip,
	last_sign_in_at, last_sign_in_ip,
	created_at, updated_at`

// PrincipalRepository implements auth.PrincipalRepository over one table.
type PrincipalRepository struct {
	pool  poolIface
	table string
	ident string
}

// NewPrincipalRepository creates a repository for table.
func NewPrincipalRepository(pool poolIface, table string) *PrincipalRepository {
	return &PrincipalRepository{
		pool:  pool,
		table: table,
		ident: pgx.Identifier{table}.Sanitize(),
	}
}

// Table returns the table name.
func (r *PrincipalRepository) Table() string {
	return r.table
}

// Create stores a new principal.
func (r *PrincipalRepository) Create(ctx context.Context, p *auth.Principal) error {
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, r.ident, principalColumns),
		p.ID.String(),
		p.Email,
		p.PasswordDigest,
		p.RememberToken.Digest,
		p.RememberToken.IssuedAt,
		p.ResetToken.Digest,
		p.ResetToken.IssuedAt,
		p.SignInCount,
		p.CurrentSignInAt,
		p.CurrentSignInIP,
		p.LastSignInAt,
		p.LastSignInIP,
		p.CreatedAt,
		p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("PRINCIPAL_DUPLICATE_EMAIL").
			With("table", r.table).
			With("email", p.Email).
			Wrap(auth.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("PRINCIPAL_CREATE_FAILED").
			With("operation", "insert principal").
			With("table", r.table).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a principal by id.
func (r *PrincipalRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, principalColumns, r.ident), id.String())

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("table", r.table).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_ID_FAILED").
			With("operation", "get principal by id").
			With("table", r.table).
			With("id", id.String()).
			Wrap(err)
	}
	return p, nil
}

// GetByEmail retrieves a principal by normalized email.
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM %s WHERE email = $1
	`, principalColumns, r.ident), email)

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("table", r.table).
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_EMAIL_FAILED").
			With("operation", "get principal by email").
			With("table", r.table).
			Wrap(err)
	}
	return p, nil
}

// UpdatePassword replaces the password digest.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error {
	return r.update(ctx, "update password", id, `password_digest = $2`, digest)
}

// SaveToken writes the digest and issuance time of one token kind.
func (r *PrincipalRepository) SaveToken(ctx context.Context, id ulid.ULID, kind token.Kind, st token.State) error {
	prefix, err := tokenColumnPrefix(kind)
	if err != nil {
		return err
	}
	set := fmt.Sprintf(`%[1]s_digest = $2, %[1]s_issued_at = $3`, prefix)
	return r.update(ctx, "save "+string(kind)+" token", id, set, st.Digest, st.IssuedAt)
}

// UpdateSignIn writes the sign-in bookkeeping in one statement.
func (r *PrincipalRepository) UpdateSignIn(ctx context.Context, id ulid.ULID, s auth.SignIn) error {
	return r.update(ctx, "update sign-in", id, `
		sign_in_count = $2,
		current_sign_in_at = $3, current_sign_in_ip = $4,
		last_sign_in_at = $5, last_sign_in_ip = $6`,
		s.Count, s.CurrentAt, s.CurrentIP, s.LastAt, s.LastIP)
}

func (r *PrincipalRepository) update(ctx context.Context, operation string, id ulid.ULID, set string, args ...any) error {
	args = append([]any{id.String()}, args...)
	result, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET %s, updated_at = now() WHERE id = $1
	`, r.ident, set), args...)
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", operation).
			With("table", r.table).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("operation", operation).
			With("table", r.table).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func tokenColumnPrefix(kind token.Kind) (string, error) {
	switch kind {
	case token.Remember:
		return "remember_token", nil
	case token.PasswordReset:
		return "reset_token", nil
	default:
		return "", oops.Code("PRINCIPAL_UNKNOWN_TOKEN_KIND").
			With("kind", string(kind)).
			Errorf("unknown token kind %q", kind)
	}
}

func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		p     auth.Principal
		idStr string
	)
	err := row.Scan(
		&idStr,
		&p.Email,
		&p.PasswordDigest,
		&p.RememberToken.Digest,
		&p.RememberToken.IssuedAt,
		&p.ResetToken.Digest,
		&p.ResetToken.IssuedAt,
		&p.SignInCount,
		&p.CurrentSignInAt,
		&p.CurrentSignInIP,
		&p.LastSignInAt,
		&p.LastSignInIP,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	p.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	return &p, nil
}

// Verify interface is satisfied.
var _ auth.PrincipalRepository = (*PrincipalRepository)(nil)
