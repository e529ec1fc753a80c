// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package auth

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"
)

// Validation messages.
const (
	MsgBlank        = "can't be blank"
	MsgInvalid      = "is invalid"
	MsgTaken        = "has already been taken"
	MsgConfirmation = "doesn't match Password"
)

// Validated fields.
const (
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "password_confirmation"
)

// emailRegex accepts a local part of RFC 5322 atext characters and a
// hostname made of dot-separated labels.
var emailRegex = regexp.MustCompile(
	`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`,
)

// ValidationErrors maps a field name to its messages.
// A nil or empty value means the input is valid.
type ValidationErrors map[string][]string

// Add appends a message for field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// OK reports whether there are no messages.
func (v ValidationErrors) OK() bool {
	return len(v) == 0
}

// Fields returns the fields with messages, sorted.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Validator checks candidate credentials.
type Validator interface {
	// ValidateRegistration checks email, password and confirmation for a
	// new principal.
	ValidateRegistration(email, password, confirmation string, minimum int) ValidationErrors

	// ValidatePassword checks a new password and its confirmation.
	ValidatePassword(password, confirmation string, minimum int) ValidationErrors
}

// DefaultValidator enforces email format, password presence and minimum
// length, and confirmation match.
type DefaultValidator struct{}

// ValidateRegistration implements Validator.
func (DefaultValidator) ValidateRegistration(email, password, confirmation string, minimum int) ValidationErrors {
	errs := ValidationErrors{}
	switch {
	case email == "":
		errs.Add(FieldEmail, MsgBlank)
	case !emailRegex.MatchString(email):
		errs.Add(FieldEmail, MsgInvalid)
	}
	for field, msgs := range (DefaultValidator{}).ValidatePassword(password, confirmation, minimum) {
		for _, msg := range msgs {
			errs.Add(field, msg)
		}
	}
	return errs
}

// ValidatePassword implements Validator.
func (DefaultValidator) ValidatePassword(password, confirmation string, minimum int) ValidationErrors {
	errs := ValidationErrors{}
	if password == "" {
		errs.Add(FieldPassword, MsgBlank)
	} else if utf8.RuneCountInString(password) < minimum {
		errs.Add(FieldPassword, TooShort(minimum))
	}
	if confirmation != password {
		errs.Add(FieldPasswordConfirmation, MsgConfirmation)
	}
	return errs
}

// TooShort returns the minimum length message.
func TooShort(minimum int) string {
	return fmt.Sprintf("is too short (minimum is %d characters)", minimum)
}

// Compile-time interface check.
var _ Validator = DefaultValidator{}
