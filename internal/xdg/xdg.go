// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

// Package xdg provides XDG Base Directory paths for KeyGate.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "keygate"

// ConfigDir returns the XDG config directory for keygate.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path to keygate.yaml in the XDG config
// directory if it exists, or the empty string otherwise.
func DefaultConfigFile() string {
	path := filepath.Join(ConfigDir(), "keygate.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
