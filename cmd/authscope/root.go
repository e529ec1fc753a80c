// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/authscope/authscope/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authscope CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authscope",
		Short: "authscope - multi-scope authentication service",
		Long: `authscope authenticates principals in independent scopes
(accounts, admins, ...) with password sign-in, remember-me cookies and
password reset, backed by PostgreSQL or SQLite.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/authscope/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewScopesCmd())

	return cmd
}

// configPath returns the --config value or the XDG default.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return config.DefaultPath()
}

// loadConfig resolves the config path and loads it with flag overrides.
func loadConfig(loader func(string, *pflag.FlagSet) (*config.File, error), flags *pflag.FlagSet) (*config.File, error) {
	if loader == nil {
		loader = config.Load
	}
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return loader(path, flags)
}
