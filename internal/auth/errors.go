// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested principal does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a principal with the same email exists.
var ErrDuplicateEmail = errors.New("email already taken")

// ErrUnknownRecordType is returned when no repository serves a record type.
var ErrUnknownRecordType = errors.New("unknown record type")
