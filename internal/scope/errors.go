// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package scope

import "errors"

// ErrConfiguration marks missing or duplicate scopes and incomplete scope
// configuration. Callers should treat it as fatal.
var ErrConfiguration = errors.New("configuration error")

// ErrInvalidArgument is returned when a required argument is missing.
var ErrInvalidArgument = errors.New("invalid argument")
