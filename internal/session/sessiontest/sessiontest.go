// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package sessiontest provides in-memory session stores and cookie jars.
package sessiontest

import (
	"fmt"
	"maps"
	"sync/atomic"

	"github.com/authscope/authscope/internal/session"
)

var generation atomic.Uint64

// Store is a session.Store backed by a map. Renew assigns a new ID.
type Store struct {
	ID     string
	Values map[string]string
	// RenewErr is returned by Renew when set.
	RenewErr error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{ID: nextID(), Values: make(map[string]string)}
}

func nextID() string {
	return fmt.Sprintf("session-%d", generation.Add(1))
}

// Get implements session.Store.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Set implements session.Store.
func (s *Store) Set(key, value string) {
	s.Values[key] = value
}

// Delete implements session.Store.
func (s *Store) Delete(key string) {
	delete(s.Values, key)
}

// Renew implements session.Store.
func (s *Store) Renew() error {
	if s.RenewErr != nil {
		return s.RenewErr
	}
	s.ID = nextID()
	s.Values = make(map[string]string)
	return nil
}

// Snapshot returns a copy of the stored values.
func (s *Store) Snapshot() map[string]string {
	return maps.Clone(s.Values)
}

// Jar is a session.CookieJar that keeps cookies in plaintext.
// Set cookies become readable immediately.
type Jar struct {
	Cookies map[string]session.Cookie
	Deleted map[string]bool
	// SetErr is returned by SetEncrypted when set.
	SetErr error
}

// NewJar creates an empty Jar.
func NewJar() *Jar {
	return &Jar{
		Cookies: make(map[string]session.Cookie),
		Deleted: make(map[string]bool),
	}
}

// Encrypted implements session.CookieJar.
func (j *Jar) Encrypted(name string) (string, bool) {
	c, ok := j.Cookies[name]
	return c.Value, ok
}

// SetEncrypted implements session.CookieJar.
func (j *Jar) SetEncrypted(name string, c session.Cookie) error {
	if j.SetErr != nil {
		return j.SetErr
	}
	j.Cookies[name] = c
	delete(j.Deleted, name)
	return nil
}

// Delete implements session.CookieJar.
func (j *Jar) Delete(name string) {
	delete(j.Cookies, name)
	j.Deleted[name] = true
}

// Verify interfaces are satisfied.
var (
	_ session.Store     = (*Store)(nil)
	_ session.CookieJar = (*Jar)(nil)
)
