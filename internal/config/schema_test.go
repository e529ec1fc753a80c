// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/pkg/errutil"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])
	assert.Contains(t, doc["required"], "scopes")

	props := doc["properties"].(map[string]any)
	for _, key := range []string{"scopes", "cookie", "database", "redis", "web", "mail", "log"} {
		assert.Contains(t, props, key)
	}

	redis := props["redis"].(map[string]any)["properties"].(map[string]any)
	ttl := redis["session_ttl"].(map[string]any)
	assert.Equal(t, "string", ttl["type"])
	assert.Equal(t, durationPattern, ttl["pattern"])
}

func TestValidateSchema(t *testing.T) {
	require.NoError(t, ValidateSchema([]byte("scopes:\n  - name: account\n    model: accounts\n    remember_for: 336h\n")))

	errutil.AssertErrorCode(t, ValidateSchema(nil), "CONFIG_EMPTY")
	errutil.AssertErrorCode(t, ValidateSchema([]byte("scopes: [")), "CONFIG_YAML_INVALID")
	errutil.AssertErrorCode(t, ValidateSchema([]byte("scopes:\n  - name: Account\n    model: accounts\n")), "CONFIG_SCHEMA_VIOLATION")
}

func TestJSONTypes(t *testing.T) {
	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	in := map[string]any{
		"list": []any{1, "a", true},
		"when": at,
	}
	out := jsonTypes(in).(map[string]any)
	assert.Equal(t, []any{1, "a", true}, out["list"])
	assert.Equal(t, "2026-05-04T09:00:00Z", out["when"])
}
