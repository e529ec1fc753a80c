// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/authscope/authscope/internal/token"
)

func TestCompose(t *testing.T) {
	assert.Equal(t, "01H:abc", token.Compose("01H", "abc"))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantID     string
		wantSecret string
		wantOK     bool
	}{
		{name: "simple", value: "01H:abc", wantID: "01H", wantSecret: "abc", wantOK: true},
		{name: "splits on first colon only", value: "01H:ab:cd", wantID: "01H", wantSecret: "ab:cd", wantOK: true},
		{name: "no colon", value: "01Habc"},
		{name: "empty id", value: ":abc"},
		{name: "empty secret", value: "01H:"},
		{name: "empty", value: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, ok := token.Split(tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantSecret, secret)
		})
	}
}
