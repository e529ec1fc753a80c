// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/auth/postgres"
	"github.com/authscope/authscope/internal/token"
)

var _ = Describe("PrincipalRepository", func() {
	var (
		ctx     context.Context
		catalog *postgres.Catalog
		repo    auth.PrincipalRepository
		p       *auth.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		catalog = postgres.NewCatalog(testPool, "accounts", "admins")

		var err error
		repo, err = catalog.Repository("accounts")
		Expect(err).NotTo(HaveOccurred())

		p, err = auth.NewPrincipal(ulid.Make().String()+"@example.com", "digest")
		Expect(err).NotTo(HaveOccurred())
		p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
		p.UpdatedAt = p.CreatedAt
		Expect(repo.Create(ctx, p)).To(Succeed())

		DeferCleanup(func() {
			_, _ = testPool.Exec(context.Background(), `DELETE FROM accounts WHERE id = $1`, p.ID.String())
		})
	})

	It("round-trips a principal by id and email", func() {
		byID, err := repo.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Email).To(Equal(p.Email))
		Expect(byID.CreatedAt).To(BeTemporally("==", p.CreatedAt))
		Expect(byID.RememberToken.Present()).To(BeFalse())

		byEmail, err := repo.GetByEmail(ctx, p.Email)
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(p.ID))
	})

	It("rejects a duplicate email", func() {
		dup, err := auth.NewPrincipal(p.Email, "other")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, dup)).To(MatchError(auth.ErrDuplicateEmail))
	})

	It("keeps scopes in separate tables", func() {
		admins, err := catalog.Repository("admins")
		Expect(err).NotTo(HaveOccurred())

		_, err = admins.GetByID(ctx, p.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("saves and clears token state", func() {
		digest := "token-digest"
		issued := time.Now().UTC().Truncate(time.Microsecond)
		Expect(repo.SaveToken(ctx, p.ID, token.PasswordReset, token.State{Digest: &digest, IssuedAt: &issued})).To(Succeed())

		stored, err := repo.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ResetToken.Present()).To(BeTrue())
		Expect(*stored.ResetToken.Digest).To(Equal(digest))
		Expect(*stored.ResetToken.IssuedAt).To(BeTemporally("==", issued))
		Expect(stored.RememberToken.Present()).To(BeFalse())

		Expect(repo.SaveToken(ctx, p.ID, token.PasswordReset, token.State{})).To(Succeed())
		stored, err = repo.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ResetToken.Present()).To(BeFalse())
	})

	It("writes sign-in bookkeeping and passwords", func() {
		next := p.NextSignIn(time.Now().UTC().Truncate(time.Microsecond), "192.0.2.10")
		Expect(repo.UpdateSignIn(ctx, p.ID, next)).To(Succeed())
		Expect(repo.UpdatePassword(ctx, p.ID, "new-digest")).To(Succeed())

		stored, err := repo.GetByID(ctx, p.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.SignInCount).To(Equal(1))
		Expect(*stored.CurrentSignInIP).To(Equal("192.0.2.10"))
		Expect(stored.LastSignInAt).To(BeNil())
		Expect(stored.PasswordDigest).To(Equal("new-digest"))
	})

	It("reports unknown ids on update", func() {
		Expect(repo.UpdatePassword(ctx, ulid.Make(), "x")).To(MatchError(auth.ErrNotFound))
	})
})
