// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authscope/authscope/internal/config"
	"github.com/authscope/authscope/pkg/errutil"
)

// fakeMigrator implements Migrator for testing.
type fakeMigrator struct {
	pending  []uint
	version  uint
	dirty    bool
	upErr    error
	stepsErr error

	upCalled   bool
	downCalled bool
	steps      int
	forced     int
	closed     bool
}

func (m *fakeMigrator) Up() error                          { m.upCalled = true; return m.upErr }
func (m *fakeMigrator) Down() error                        { m.downCalled = true; return nil }
func (m *fakeMigrator) Steps(n int) error                  { m.steps = n; return m.stepsErr }
func (m *fakeMigrator) Version() (uint, bool, error)       { return m.version, m.dirty, nil }
func (m *fakeMigrator) Force(v int) error                  { m.forced = v; return nil }
func (m *fakeMigrator) PendingMigrations() ([]uint, error) { return m.pending, nil }
func (m *fakeMigrator) Close() error                       { m.closed = true; return nil }

func runMigrate(t *testing.T, m *fakeMigrator, args ...string) (string, string, error) {
	t.Helper()
	var gotURL string
	deps := &MigrateDeps{
		ConfigLoader: func(_ string, flags *pflag.FlagSet) (*config.File, error) {
			f := config.Default()
			f.Database.URL = "sqlite:///tmp/authscope.db"
			if v, err := flags.GetString("database-url"); err == nil && v != "" {
				f.Database.URL = v
			}
			return &f, nil
		},
		MigratorFactory: func(databaseURL string) (Migrator, error) {
			gotURL = databaseURL
			return m, nil
		},
	}
	configFile = "/unused.yaml"
	t.Cleanup(func() { configFile = "" })

	cmd := newMigrateCmdWithDeps(deps)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), gotURL, err
}

func TestMigrateUp(t *testing.T) {
	t.Run("applies pending", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1, 2}}
		out, url, err := runMigrate(t, m, "up")
		require.NoError(t, err)
		assert.True(t, m.upCalled)
		assert.True(t, m.closed)
		assert.Contains(t, out, "Applied 2 migration(s)")
		assert.Equal(t, "sqlite:///tmp/authscope.db", url)
	})

	t.Run("nothing pending", func(t *testing.T) {
		m := &fakeMigrator{}
		out, _, err := runMigrate(t, m, "up")
		require.NoError(t, err)
		assert.False(t, m.upCalled)
		assert.Contains(t, out, "No pending migrations")
	})

	t.Run("failure", func(t *testing.T) {
		m := &fakeMigrator{pending: []uint{1}, upErr: errors.New("boom")}
		_, _, err := runMigrate(t, m, "up")
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
		assert.True(t, m.closed)
	})

	t.Run("database url flag", func(t *testing.T) {
		m := &fakeMigrator{}
		_, url, err := runMigrate(t, m, "up", "--database-url", "postgres://db/authscope")
		require.NoError(t, err)
		assert.Equal(t, "postgres://db/authscope", url)
	})
}

func TestMigrateDown(t *testing.T) {
	t.Run("one step by default", func(t *testing.T) {
		m := &fakeMigrator{}
		_, _, err := runMigrate(t, m, "down")
		require.NoError(t, err)
		assert.Equal(t, -1, m.steps)
		assert.False(t, m.downCalled)
	})

	t.Run("steps", func(t *testing.T) {
		m := &fakeMigrator{}
		_, _, err := runMigrate(t, m, "down", "--steps", "2")
		require.NoError(t, err)
		assert.Equal(t, -2, m.steps)
	})

	t.Run("all", func(t *testing.T) {
		m := &fakeMigrator{}
		_, _, err := runMigrate(t, m, "down", "--all")
		require.NoError(t, err)
		assert.True(t, m.downCalled)
	})

	t.Run("no change is not an error", func(t *testing.T) {
		m := &fakeMigrator{stepsErr: migrate.ErrNoChange}
		_, _, err := runMigrate(t, m, "down")
		require.NoError(t, err)
	})

	t.Run("invalid steps", func(t *testing.T) {
		m := &fakeMigrator{}
		_, _, err := runMigrate(t, m, "down", "--steps", "0")
		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
	})
}

func TestMigrateVersion(t *testing.T) {
	out, _, err := runMigrate(t, &fakeMigrator{version: 2}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version 2")
	assert.NotContains(t, out, "dirty")

	out, _, err = runMigrate(t, &fakeMigrator{version: 3, dirty: true}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version 3 (dirty)")
}

func TestMigrateForce(t *testing.T) {
	m := &fakeMigrator{}
	out, _, err := runMigrate(t, m, "force", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.forced)
	assert.Contains(t, out, "Forced version 1")
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErrCode string
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "negative is valid", input: "-1", wantVersion: -1},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
		{name: "non-numeric returns error", input: "abc", wantErrCode: "INVALID_VERSION"},
		{name: "empty string returns error", input: "", wantErrCode: "INVALID_VERSION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)
			if tt.wantErrCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}
