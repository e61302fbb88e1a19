// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wopr-net/wopr/internal/a2a"
	"github.com/wopr-net/wopr/internal/bus"
	"github.com/wopr-net/wopr/internal/capability"
	"github.com/wopr-net/wopr/internal/channel"
	"github.com/wopr-net/wopr/internal/core"
	"github.com/wopr-net/wopr/internal/host"
	"github.com/wopr-net/wopr/internal/inject"
	"github.com/wopr-net/wopr/internal/logging"
	"github.com/wopr-net/wopr/internal/observability"
	"github.com/wopr-net/wopr/internal/storage/postgres"
	"github.com/wopr-net/wopr/pkg/errutil"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the plugin host",
		Long: `Start the plugin host: connect to the database, run pending
migrations, load and activate the built-in plugins, and serve metrics
and health probes until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database-url (or DATABASE_URL) is required")
	}

	logging.SetDefault(logging.Options{
		Service: "wopr",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrator, err := postgres.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	if err := migrator.Close(); err != nil {
		return oops.Code("MIGRATION_FAILED").Wrap(err)
	}

	store, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	defer store.Close()

	events := bus.New()
	hooks := bus.NewHooks(events)
	channels := channel.NewRegistry()
	injector := inject.NewManager(events, hooks, channelDeliverer{channels: channels}, log)

	h := host.New(host.Options{
		Logger:       log,
		Events:       events,
		Hooks:        hooks,
		Capabilities: capability.NewRegistry(),
		Enforcer:     capability.NewEnforcer(),
		Channels:     channels,
		Tools:        a2a.NewRegistry(),
		Injector:     injector,
		Storage: func(ns string) plugin.StorageAPI {
			return postgres.NewAPI(store, ns)
		},
		ConfigBackend: postgres.NewConfigStore(store),
	})

	obs := observability.NewServer(cfg.MetricsAddr, func() bool {
		return len(h.Plugins()) > 0
	})
	obsErr, err := obs.Start()
	if err != nil {
		return err
	}

	for _, p := range builtins() {
		if err := h.Load(ctx, p); err != nil {
			return err
		}
		if err := h.Activate(ctx, p.Name); err != nil {
			return err
		}
	}

	log.Info("wopr host running", "plugins", h.Plugins())

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-obsErr:
		if err != nil {
			errutil.LogError(log, "observability server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	h.ShutdownAll(shutdownCtx)
	if err := obs.Stop(shutdownCtx); err != nil {
		log.Warn("observability stop failed", "error", err)
	}
	return nil
}

// channelDeliverer routes injected content through the session's channel
// provider dispatch, so parsers see it like any other message.
type channelDeliverer struct {
	channels *channel.Registry
}

func (d channelDeliverer) Deliver(ctx context.Context, sessionID, channelID, content string) error {
	provider := d.channels.Provider(channelID)
	_, err := provider.Dispatch(ctx, plugin.Message{
		ID:        core.NewULID().String(),
		ChannelID: channelID,
		Sender:    "session:" + sessionID,
		Content:   content,
		Time:      time.Now(),
	})
	return err
}

var _ inject.Deliverer = channelDeliverer{}
