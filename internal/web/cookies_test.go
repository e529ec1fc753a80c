// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package web

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/session"
	"github.com/authscope/authscope/pkg/errutil"
)

func testCipher(t *testing.T) *CookieCipher {
	t.Helper()
	c, err := NewCookieCipher(bytes.Repeat([]byte("s"), MinSecretLength))
	require.NoError(t, err)
	return c
}

func TestNewCookieCipher_ShortSecret(t *testing.T) {
	_, err := NewCookieCipher([]byte("short"))
	errutil.AssertErrorCode(t, err, "WEB_SECRET_TOO_SHORT")
}

func TestCookieCipher_SealOpen(t *testing.T) {
	c := testCipher(t)

	sealed, err := c.Seal("_remember_account_token", "01ARZ3NDEKTSV4RRFFQ69G5FAV:secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	plain, ok := c.Open("_remember_account_token", sealed)
	require.True(t, ok)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV:secret", plain)

	again, err := c.Seal("_remember_account_token", "01ARZ3NDEKTSV4RRFFQ69G5FAV:secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "every seal uses a fresh nonce")
}

func TestCookieCipher_OpenRejects(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Seal("_remember_account_token", "value")
	require.NoError(t, err)

	other, err := NewCookieCipher(bytes.Repeat([]byte("o"), MinSecretLength))
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 'A' ^ 'B'

	tests := []struct {
		name   string
		cipher *CookieCipher
		cookie string
		value  string
	}{
		{name: "other cookie name", cipher: c, cookie: "_remember_admin_token", value: sealed},
		{name: "other secret", cipher: other, cookie: "_remember_account_token", value: sealed},
		{name: "tampered", cipher: c, cookie: "_remember_account_token", value: string(tampered)},
		{name: "not base64", cipher: c, cookie: "_remember_account_token", value: "%%%"},
		{name: "too short", cipher: c, cookie: "_remember_account_token", value: "AAAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.cipher.Open(tt.cookie, tt.value)
			assert.False(t, ok)
		})
	}
}

func TestJar(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Seal("_remember_account_token", "from-request")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "_remember_account_token", Value: sealed})
	w := httptest.NewRecorder()
	jar := c.Jar(w, r)

	v, ok := jar.Encrypted("_remember_account_token")
	require.True(t, ok)
	assert.Equal(t, "from-request", v)

	_, ok = jar.Encrypted("_remember_admin_token")
	assert.False(t, ok)

	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, jar.SetEncrypted("_remember_admin_token", session.Cookie{
		Value:    "written",
		Expires:  expires,
		Secure:   true,
		HTTPOnly: true,
		SameSite: scope.SameSiteStrict,
	}))
	v, ok = jar.Encrypted("_remember_admin_token")
	require.True(t, ok)
	assert.Equal(t, "written", v)

	jar.Delete("_remember_account_token")
	_, ok = jar.Encrypted("_remember_account_token")
	assert.False(t, ok)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 2)

	set := cookies[0]
	assert.Equal(t, "_remember_admin_token", set.Name)
	assert.True(t, set.Secure)
	assert.True(t, set.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, set.SameSite)
	assert.True(t, expires.Equal(set.Expires))
	plain, ok := c.Open("_remember_admin_token", set.Value)
	require.True(t, ok)
	assert.Equal(t, "written", plain)

	deleted := cookies[1]
	assert.Equal(t, "_remember_account_token", deleted.Name)
	assert.Equal(t, -1, deleted.MaxAge)
}
