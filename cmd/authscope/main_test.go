// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate", "scopes"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{name: "separate value", args: []string{"--config", "/path/to/config.yaml", "--help"}, wantFlag: "/path/to/config.yaml"},
		{name: "with equals", args: []string{"--config=/etc/authscope.yaml", "--help"}, wantFlag: "/etc/authscope.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile = ""
			t.Cleanup(func() { configFile = "" })

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestConfigPath(t *testing.T) {
	configFile = ""
	t.Cleanup(func() { configFile = "" })
	t.Setenv("XDG_CONFIG_HOME", "/cfg")

	got, err := configPath()
	require.NoError(t, err)
	assert.Equal(t, "/cfg/authscope/config.yaml", got)

	configFile = "/explicit.yaml"
	got, err = configPath()
	require.NoError(t, err)
	assert.Equal(t, "/explicit.yaml", got)
}

const testConfig = `
scopes:
  - name: account
    model: accounts
  - name: admin
    model: admins
    remember_for: 1h
    sign_in_path: /admin/login
cookie:
  same_site: strict
`

// useConfig writes content to a temp file and points --config at it.
func useConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	configFile = path
	t.Cleanup(func() { configFile = "" })
	return path
}
