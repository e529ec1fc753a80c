// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/authscope/authscope/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("scope", "account").Errorf("test error")
	errutil.AssertErrorContext(t, err, "scope", "account")
}

func TestAssertCodeAndCause(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := oops.Code("WRAPPED").Wrapf(sentinel, "wrapped")
	errutil.AssertCodeAndCause(t, err, "WRAPPED", sentinel)
}
