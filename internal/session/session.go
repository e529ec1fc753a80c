// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package session resolves, signs in and signs out principals per scope.
//
// The HTTP layer owns the session store and cookie jar of each request and
// passes them in through a Request. The Manager holds no per-request state.
package session

import (
	"time"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/scope"
)

// Store is a request-scoped session.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)

	// Renew drops every value and gives the session a new identity.
	Renew() error
}

// Cookie is a cookie to be written with the response.
type Cookie struct {
	Value    string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite scope.SameSite
}

// CookieJar reads request cookies and queues response cookies.
type CookieJar interface {
	// Encrypted returns the decrypted value of the named cookie. A missing or
	// tampered cookie reports false.
	Encrypted(name string) (string, bool)

	// SetEncrypted queues an encrypted cookie.
	SetEncrypted(name string, c Cookie) error

	// Delete queues removal of the named cookie.
	Delete(name string)
}

// Request carries the collaborators and the current-principal cache for one
// request. It must not be shared across requests.
type Request struct {
	store    Store
	jar      CookieJar
	remoteIP string

	// current holds resolved principals. A nil entry means resolved as anonymous.
	current map[scope.Name]*auth.Principal
}

// NewRequest creates a Request.
func NewRequest(store Store, jar CookieJar, remoteIP string) *Request {
	return &Request{
		store:    store,
		jar:      jar,
		remoteIP: remoteIP,
		current:  make(map[scope.Name]*auth.Principal),
	}
}

// RemoteIP returns the client address recorded at sign-in.
func (r *Request) RemoteIP() string {
	return r.remoteIP
}

func (r *Request) cached(name scope.Name) (*auth.Principal, bool) {
	p, ok := r.current[name]
	return p, ok
}

func (r *Request) cache(name scope.Name, p *auth.Principal) {
	r.current[name] = p
}

// Redirect instructs the caller to send the client elsewhere.
type Redirect struct {
	Location string
}

// SignInOptions controls SignIn.
type SignInOptions struct {
	// Remember issues a remember-me cookie alongside the session.
	Remember bool
}
