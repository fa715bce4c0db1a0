// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigFile returns the --config value, falling back to
// $XDG_CONFIG_HOME/keygate/keygate.yaml when that file exists.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return xdg.DefaultConfigFile()
}

// NewRootCmd creates the root command for the KeyGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygate",
		Short: "KeyGate - credential verification and token issuance service",
		Long: `KeyGate is a standalone authentication backend: registration, login,
stateless bearer tokens, profile management, and password reset.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
