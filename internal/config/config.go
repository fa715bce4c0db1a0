// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

// Package config loads KeyGate configuration from file, environment, and flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultTokenTTL    = time.Hour
)

// Config holds the process configuration. Precedence, lowest to highest:
// defaults, config file, environment, command-line flags.
type Config struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `koanf:"listen_addr"`

	// MetricsAddr is the metrics/health listen address. Empty disables
	// the observability server.
	MetricsAddr string `koanf:"metrics_addr"`

	// DatabaseURL is the PostgreSQL connection string. Required.
	DatabaseURL string `koanf:"database_url"`

	// LogFormat selects the slog handler: "json" or "text".
	LogFormat string `koanf:"log_format"`

	// TokenSecret signs issued tokens. Required; its absence aborts
	// startup rather than failing per-request.
	TokenSecret string `koanf:"token_secret"`

	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required (or set DATABASE_URL)")
	}
	if c.TokenSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token_secret is required (or set KEYGATE_TOKEN_SECRET)")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// Load builds the configuration. configFile may be empty; flags may be nil.
// Environment variables DATABASE_URL and KEYGATE_TOKEN_SECRET override the
// file so secrets can stay out of it.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"listen_addr":  DefaultListenAddr,
		"metrics_addr": DefaultMetricsAddr,
		"log_format":   DefaultLogFormat,
		"token_ttl":    DefaultTokenTTL,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("config_file", configFile).
				Wrap(err)
		}
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		if err := k.Set("database_url", dsn); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}
	if secret := os.Getenv("KEYGATE_TOKEN_SECRET"); secret != "" {
		if err := k.Set("token_secret", secret); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithValue(flags, ".", k, flagToKey), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return cfg, nil
}

// flagToKey maps a --dashed-flag name to its underscored config key.
func flagToKey(key, value string) (string, any) {
	return strings.ReplaceAll(key, "-", "_"), value
}
