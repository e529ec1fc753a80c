// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package sqlite stores principals in SQLite through sqlx.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/token"
)

// principalRow is the persisted shape of a principal.
type principalRow struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	PasswordDigest        string     `db:"password_digest"`
	RememberTokenDigest   *string    `db:"remember_token_digest"`
	RememberTokenIssuedAt *time.Time `db:"remember_token_issued_at"`
	ResetTokenDigest      *string    `db:"reset_token_digest"`
	ResetTokenIssuedAt    *time.Time `db:"reset_token_issued_at"`
	SignInCount           int        `db:"sign_in_count"`
	CurrentSignInAt       *time.Time `db:"current_sign_in_at"`
	CurrentSignInIP       *string    `db:"current_sign_in_ip"`
	LastSignInAt          *time.Time `db:"last_sign_in_at"`
	LastSignInIP          *string    `db:"last_sign_in_ip"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func toRow(p *auth.Principal) principalRow {
	return principalRow{
		ID:                    p.ID.String(),
		Email:                 p.Email,
		PasswordDigest:        p.PasswordDigest,
		RememberTokenDigest:   p.RememberToken.Digest,
		RememberTokenIssuedAt: p.RememberToken.IssuedAt,
		ResetTokenDigest:      p.ResetToken.Digest,
		ResetTokenIssuedAt:    p.ResetToken.IssuedAt,
		SignInCount:           p.SignInCount,
		CurrentSignInAt:       p.CurrentSignInAt,
		CurrentSignInIP:       p.CurrentSignInIP,
		LastSignInAt:          p.LastSignInAt,
		LastSignInIP:          p.LastSignInIP,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func (r principalRow) toPrincipal() (*auth.Principal, error) {
	id, err := ulid.Parse(r.ID)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").With("id", r.ID).Wrap(err)
	}
	return &auth.Principal{
		ID:              id,
		Email:           r.Email,
		PasswordDigest:  r.PasswordDigest,
		RememberToken:   token.State{Digest: r.RememberTokenDigest, IssuedAt: r.RememberTokenIssuedAt},
		ResetToken:      token.State{Digest: r.ResetTokenDigest, IssuedAt: r.ResetTokenIssuedAt},
		SignInCount:     r.SignInCount,
		CurrentSignInAt: r.CurrentSignInAt,
		CurrentSignInIP: r.CurrentSignInIP,
		LastSignInAt:    r.LastSignInAt,
		LastSignInIP:    r.LastSignInIP,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

// PrincipalRepository implements auth.PrincipalRepository over one table.
type PrincipalRepository struct {
	db    *sqlx.DB
	table string
	ident string
	now   func() time.Time
}

// NewPrincipalRepository creates a repository for table.
func NewPrincipalRepository(db *sqlx.DB, table string) *PrincipalRepository {
	return &PrincipalRepository{
		db:    db,
		table: table,
		ident: `"` + strings.ReplaceAll(table, `"`, `""`) + `"`,
		now:   time.Now,
	}
}

// Table returns the table name.
func (r *PrincipalRepository) Table() string {
	return r.table
}

// Create stores a new principal.
func (r *PrincipalRepository) Create(ctx context.Context, p *auth.Principal) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, email, password_digest,
			remember_token_digest, remember_token_issued_at,
			reset_token_digest, reset_token_issued_at,
			sign_in_count, current_sign_in_at, current_sign_in_ip,
			last_sign_in_at, last_sign_in_ip,
			created_at, updated_at
		) VALUES (
			:id, :email, :password_digest,
			:remember_token_digest, :remember_token_issued_at,
			:reset_token_digest, :reset_token_issued_at,
			:sign_in_count, :current_sign_in_at, :current_sign_in_ip,
			:last_sign_in_at, :last_sign_in_ip,
			:created_at, :updated_at
		)`, r.ident)

	_, err := r.db.NamedExecContext(ctx, query, toRow(p))
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
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
	return r.get(ctx, "id", id.String())
}

// GetByEmail retrieves a principal by normalized email.
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	return r.get(ctx, "email", email)
}

func (r *PrincipalRepository) get(ctx context.Context, column, value string) (*auth.Principal, error) {
	var row principalRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`SELECT * FROM %s WHERE %s = ?`, r.ident, column), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("table", r.table).
			With(column, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_FAILED").
			With("operation", "get principal by "+column).
			With("table", r.table).
			Wrap(err)
	}
	return row.toPrincipal()
}

// UpdatePassword replaces the password digest.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id ulid.ULID, digest string) error {
	return r.update(ctx, "update password", id, `password_digest = ?`, digest)
}

// SaveToken writes the digest and issuance time of one token kind.
func (r *PrincipalRepository) SaveToken(ctx context.Context, id ulid.ULID, kind token.Kind, st token.State) error {
	var prefix string
	switch kind {
	case token.Remember:
		prefix = "remember_token"
	case token.PasswordReset:
		prefix = "reset_token"
	default:
		return oops.Code("PRINCIPAL_UNKNOWN_TOKEN_KIND").
			With("kind", string(kind)).
			Errorf("unknown token kind %q", kind)
	}
	set := fmt.Sprintf(`%[1]s_digest = ?, %[1]s_issued_at = ?`, prefix)
	return r.update(ctx, "save "+string(kind)+" token", id, set, st.Digest, st.IssuedAt)
}

// UpdateSignIn writes the sign-in bookkeeping in one statement.
func (r *PrincipalRepository) UpdateSignIn(ctx context.Context, id ulid.ULID, s auth.SignIn) error {
	return r.update(ctx, "update sign-in", id, `
		sign_in_count = ?,
		current_sign_in_at = ?, current_sign_in_ip = ?,
		last_sign_in_at = ?, last_sign_in_ip = ?`,
		s.Count, s.CurrentAt, s.CurrentIP, s.LastAt, s.LastIP)
}

func (r *PrincipalRepository) update(ctx context.Context, operation string, id ulid.ULID, set string, args ...any) error {
	args = append(args, r.now().UTC(), id.String())
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s, updated_at = ? WHERE id = ?`, r.ident, set), args...)
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", operation).
			With("table", r.table).
			With("id", id.String()).
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("operation", operation).
			With("table", r.table).
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Catalog resolves record types to repositories for a fixed set of tables.
type Catalog struct {
	repos map[string]*PrincipalRepository
}

// NewCatalog creates a Catalog serving tables.
func NewCatalog(db *sqlx.DB, tables ...string) *Catalog {
	c := &Catalog{repos: make(map[string]*PrincipalRepository, len(tables))}
	for _, t := range tables {
		c.repos[t] = NewPrincipalRepository(db, t)
	}
	return c
}

// Repository implements auth.RepositoryResolver.
func (c *Catalog) Repository(recordType string) (auth.PrincipalRepository, error) {
	repo, ok := c.repos[recordType]
	if !ok {
		return nil, oops.Code("PRINCIPAL_UNKNOWN_RECORD_TYPE").
			With("record_type", recordType).
			Wrap(auth.ErrUnknownRecordType)
	}
	return repo, nil
}

// Verify interfaces are satisfied.
var (
	_ auth.PrincipalRepository = (*PrincipalRepository)(nil)
	_ auth.RepositoryResolver  = (*Catalog)(nil)
)
