// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"log/slog"
)

// ContextProvider supplies context text for a session, e.g. memory recall
// injected ahead of a conversation turn.
type ContextProvider interface {
	// ProviderID identifies the provider within its plugin.
	ProviderID() string

	// Provide returns context text for the session, or "" for none.
	Provide(ctx context.Context, sessionID string) (string, error)
}

// Extension is a string-keyed UI extension point. The set of kinds is
// intentionally open for third-party extension; the host validates
// uniqueness of ids, not kinds.
type Extension struct {
	ID    string
	Kind  string
	Title string
	Spec  map[string]any
}

// Context is the capability object the host hands a plugin at Init. It is
// owned by the host: the plugin holds the reference for its active lifetime
// and must not retain it past OnDeactivate. Everything registered through it
// is force-unregistered by the host at deactivation, whether or not the
// plugin cleaned up.
type Context interface {
	// PluginName returns the name of the plugin this context belongs to.
	PluginName() string

	// Logger returns a structured logger scoped to the plugin.
	Logger() *slog.Logger

	// Events returns the shared event bus.
	Events() EventBus

	// Hooks returns the shared hook manager.
	Hooks() HookManager

	// Channels returns the shared channel registry.
	Channels() ChannelRegistry

	// Storage returns the plugin's namespaced storage surface.
	Storage() StorageAPI

	// Config returns the plugin's config surface.
	Config() ConfigAPI

	// Capabilities returns the shared capability registry.
	Capabilities() CapabilityRegistry

	// Tools returns the shared agent-to-agent tool registry.
	Tools() ToolRegistry

	// Inject delivers content into a session as if it arrived from the
	// session's channel.
	Inject(ctx context.Context, sessionID, content string) error

	// CancelInject cancels an in-flight injection for a session.
	// Best-effort: the return value reports whether a cancellation was
	// actually applied, and in-flight work may still run to completion;
	// only further output delivery is suppressed.
	CancelInject(sessionID string) bool

	// RegisterContextProvider adds a session context provider. Duplicate
	// ids within the plugin are an error.
	RegisterContextProvider(p ContextProvider) error

	// UnregisterContextProvider removes a provider by id.
	UnregisterContextProvider(id string)

	// RegisterExtension adds a UI extension. Duplicate ids within the
	// plugin are an error.
	RegisterExtension(e Extension) error

	// UnregisterExtension removes an extension by id.
	UnregisterExtension(id string)
}
