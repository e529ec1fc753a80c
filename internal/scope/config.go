// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package scope

import (
	"fmt"
	"time"

	"github.com/samber/oops"
)

// Configuration defaults.
const (
	DefaultRememberFor         = 14 * 24 * time.Hour // 2 weeks
	DefaultPasswordResetWithin = time.Hour
	DefaultAfterSignInPath     = "/"
	DefaultLayout              = "authscope/application"
	DefaultPasswordMinimum     = 8
)

// Name identifies a scope (e.g. "account", "admin").
type Name string

// String returns the scope name.
func (n Name) String() string {
	return string(n)
}

// Config holds the settings for one scope.
//
// The name is fixed at construction. Every other field may be changed by the
// configurer passed to Registry.Scope.
type Config struct {
	name Name

	// Model references the principal record type backing the scope.
	// Persistence backends treat it as a table name.
	Model string

	SessionKey          string
	RememberCookie      string
	RememberFor         time.Duration
	PasswordResetWithin time.Duration
	SignInPath          string
	AfterSignInPath     string
	Layout              string
	PasswordMinimum     int
}

// NewConfig returns a Config with defaults derived from name.
func NewConfig(name Name) *Config {
	return &Config{
		name:                name,
		SessionKey:          fmt.Sprintf("%s_id", name),
		RememberCookie:      fmt.Sprintf("_remember_%s_token", name),
		RememberFor:         DefaultRememberFor,
		PasswordResetWithin: DefaultPasswordResetWithin,
		SignInPath:          fmt.Sprintf("/auth/%s/login", name),
		AfterSignInPath:     DefaultAfterSignInPath,
		Layout:              DefaultLayout,
		PasswordMinimum:     DefaultPasswordMinimum,
	}
}

// Name returns the scope name.
func (c *Config) Name() Name {
	return c.name
}

// RecordType returns the configured record type reference.
func (c *Config) RecordType() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.Model, nil
}

// Validate reports a configuration error when no record type is set.
func (c *Config) Validate() error {
	if c.Model == "" {
		return oops.Code("SCOPE_MODEL_REQUIRED").
			With("scope", c.name.String()).
			Wrapf(ErrConfiguration, "model is required for scope %q", c.name)
	}
	return nil
}
