// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/pkg/errutil"
)

func TestNewPrincipal(t *testing.T) {
	p, err := auth.NewPrincipal(" Bob@Example.com", "digest")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", p.Email)
	assert.False(t, p.ID.IsZero())
	assert.Zero(t, p.SignInCount)
	assert.False(t, p.RememberToken.Present())
	assert.False(t, p.ResetToken.Present())

	_, err = auth.NewPrincipal("  ", "digest")
	errutil.AssertErrorCode(t, err, "PRINCIPAL_INVALID_EMAIL")

	_, err = auth.NewPrincipal("bob@example.com", "")
	errutil.AssertErrorCode(t, err, "PRINCIPAL_INVALID_DIGEST")
}

func TestPrincipal_NextSignIn(t *testing.T) {
	p := &auth.Principal{}
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := p.NextSignIn(t1, "192.0.2.1")
	assert.Equal(t, 1, first.Count)
	assert.Nil(t, first.LastAt)
	assert.Zero(t, p.SignInCount, "NextSignIn does not mutate")

	p.ApplySignIn(first)
	second := p.NextSignIn(t1.Add(time.Minute), "192.0.2.2")
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, t1, *second.LastAt)
	assert.Equal(t, "192.0.2.1", *second.LastIP)
	assert.Equal(t, "192.0.2.2", *second.CurrentIP)
}
