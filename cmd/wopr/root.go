// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package main

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wopr-net/wopr/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// Config is the host configuration, layered defaults -> file -> flags.
type Config struct {
	DatabaseURL string `koanf:"database-url"`
	LogFormat   string `koanf:"log-format"`
	LogLevel    string `koanf:"log-level"`
	MetricsAddr string `koanf:"metrics-addr"`
}

// NewRootCmd creates the root command for the WOPR CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wopr",
		Short: "WOPR - a plugin-driven message bot host",
		Long: `WOPR hosts in-process plugins behind a stable contract: lifecycle,
events and hooks, channels, namespaced storage, config, capabilities,
and agent-to-agent tools.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG config dir wopr.yaml)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	cmd.PersistentFlags().String("log-format", "json", "log format: json or text")
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("metrics-addr", "127.0.0.1:9100", "metrics/health listen address")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewPluginsCmd())

	return cmd
}

// loadConfig layers the yaml config file (if given) under the command's
// flags. DATABASE_URL from the environment fills the database URL when
// neither file nor flag set it.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	path := configFile
	if path == "" {
		path = xdg.ConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	}
	if err := k.Load(posflag.Provider(cmd.Flags(), ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}
