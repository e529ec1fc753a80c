// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)

	names := map[Dialect][]string{}
	for _, dialect := range []Dialect{DialectPostgres, DialectSQLite} {
		entries, err := migrationsFS.ReadDir(dialect.migrationsDir())
		require.NoError(t, err, "should read embedded %s migrations", dialect)

		for _, entry := range entries {
			assert.True(t, pattern.MatchString(entry.Name()),
				"file %s should match pattern NNNNNN_name.(up|down).sql", entry.Name())
			names[dialect] = append(names[dialect], entry.Name())
		}
		assert.Contains(t, names[dialect], "000001_accounts.up.sql")
		assert.Contains(t, names[dialect], "000001_accounts.down.sql")
	}

	assert.Equal(t, names[DialectPostgres], names[DialectSQLite],
		"both dialects should ship the same migration versions")
}
