// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package web

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"

	"github.com/authscope/authscope/internal/session"
)

// MinSecretLength is the shortest accepted cookie secret, in bytes.
const MinSecretLength = 32

const cookieKeyInfo = "authscope encrypted cookie"

// CookieCipher seals cookie values with AES-256-GCM. The cookie name is
// bound as additional data so a value cannot be replayed under another name.
type CookieCipher struct {
	aead cipher.AEAD
}

// NewCookieCipher derives an encryption key from secret.
func NewCookieCipher(secret []byte) (*CookieCipher, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("WEB_SECRET_TOO_SHORT").
			With("minimum", MinSecretLength).
			With("length", len(secret)).
			Errorf("cookie secret must be at least %d bytes", MinSecretLength)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(cookieKeyInfo)), key); err != nil {
		return nil, oops.Code("WEB_KEY_DERIVATION_FAILED").Wrap(err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, oops.Code("WEB_CIPHER_FAILED").Wrap(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, oops.Code("WEB_CIPHER_FAILED").Wrap(err)
	}
	return &CookieCipher{aead: aead}, nil
}

// Seal encrypts value for the cookie called name.
func (c *CookieCipher) Seal(name, value string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", oops.Code("WEB_NONCE_FAILED").Wrap(err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value sealed for name. Tampered or foreign values report false.
func (c *CookieCipher) Open(name, sealed string) (string, bool) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(data) < c.aead.NonceSize() {
		return "", false
	}
	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// Jar is a session.CookieJar over one request and its response.
// Cookies written during the request are visible to later reads.
type Jar struct {
	cipher *CookieCipher
	r      *http.Request
	w      http.ResponseWriter

	// written tracks cookies set (non-nil) or deleted (nil) in this request.
	written map[string]*string
}

// Jar binds the cipher to a request.
func (c *CookieCipher) Jar(w http.ResponseWriter, r *http.Request) *Jar {
	return &Jar{cipher: c, r: r, w: w, written: make(map[string]*string)}
}

// Encrypted implements session.CookieJar.
func (j *Jar) Encrypted(name string) (string, bool) {
	if v, ok := j.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	ck, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return j.cipher.Open(name, ck.Value)
}

// SetEncrypted implements session.CookieJar.
func (j *Jar) SetEncrypted(name string, c session.Cookie) error {
	sealed, err := j.cipher.Seal(name, c.Value)
	if err != nil {
		return err
	}
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    sealed,
		Path:     "/",
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite.HTTP(),
	})
	v := c.Value
	j.written[name] = &v
	return nil
}

// Delete implements session.CookieJar.
func (j *Jar) Delete(name string) {
	http.SetCookie(j.w, &http.Cookie{
		Name:    name,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
	j.written[name] = nil
}

var _ session.CookieJar = (*Jar)(nil)
