// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package token

import "strings"

// Compose joins a principal id and a plaintext secret as "<id>:<secret>".
func Compose(id, secret string) string {
	return id + ":" + secret
}

// Split separates a composite value on its first colon. The secret half is
// returned untouched even if it contains further colons. ok is false when
// either half is empty.
func Split(value string) (id, secret string, ok bool) {
	id, secret, found := strings.Cut(value, ":")
	if !found || id == "" || secret == "" {
		return "", "", false
	}
	return id, secret, true
}
