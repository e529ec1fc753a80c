// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package auth provides the credential capability attached to principal records.
//
// # Domain Types
//
// Principal is the record owned by the persistence collaborator. Create new
// principals with NewPrincipal so the email is normalized and the id set.
//
// # Capability
//
// Authenticable binds one scope's configuration to its PrincipalRepository
// and password hasher. It composes two token mechanisms (remember-me and
// password reset), password hashing, and sign-in bookkeeping.
//
// Directory resolves and caches one Authenticable per registered scope.
//
// Validation and authentication failures are returned as values
// (ValidationErrors, ok booleans), never as errors. Errors are reserved for
// configuration problems and persistence failures.
package auth
