// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package scope

import (
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// SameSite is the same-site attribute applied to issued cookies.
type SameSite string

// Recognized SameSite values.
const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

// ParseSameSite parses a case-insensitive same-site value.
func ParseSameSite(s string) (SameSite, error) {
	switch v := SameSite(strings.ToLower(strings.TrimSpace(s))); v {
	case SameSiteStrict, SameSiteLax, SameSiteNone:
		return v, nil
	default:
		return "", oops.Code("SCOPE_INVALID_SAME_SITE").
			With("value", s).
			Wrapf(ErrConfiguration, "same_site must be strict, lax or none, got %q", s)
	}
}

// HTTP returns the net/http representation.
func (s SameSite) HTTP() http.SameSite {
	switch s {
	case SameSiteStrict:
		return http.SameSiteStrictMode
	case SameSiteNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CookiePolicy is applied to every remember cookie issued by the process.
type CookiePolicy struct {
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
}

// DefaultCookiePolicy returns http-only, lax, non-secure cookies.
func DefaultCookiePolicy() CookiePolicy {
	return CookiePolicy{
		Secure:   false,
		HTTPOnly: true,
		SameSite: SameSiteLax,
	}
}
