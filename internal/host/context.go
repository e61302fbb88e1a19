// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package host

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/wopr-net/wopr/internal/a2a"
	"github.com/wopr-net/wopr/internal/bus"
	"github.com/wopr-net/wopr/internal/capability"
	"github.com/wopr-net/wopr/internal/channel"
	"github.com/wopr-net/wopr/internal/inject"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// pluginContext implements plugin.Context. Every registration flowing
// through it is tagged with the plugin's name so teardown can sweep the
// shared registries even when the plugin never cleaned up.
type pluginContext struct {
	name     string
	log      *slog.Logger
	events   *ownedBus
	hooks    *ownedHooks
	chanBase *channel.Registry
	channels plugin.ChannelRegistry
	storage  plugin.StorageAPI
	cfg      plugin.ConfigAPI
	caps     *ownedCaps
	tools    *ownedTools
	injector *inject.Manager

	mu         sync.Mutex
	providers  map[string]plugin.ContextProvider
	extensions map[string]plugin.Extension
}

func (c *pluginContext) PluginName() string { return c.name }

func (c *pluginContext) Logger() *slog.Logger { return c.log }

func (c *pluginContext) Events() plugin.EventBus { return c.events }

func (c *pluginContext) Hooks() plugin.HookManager { return c.hooks }

func (c *pluginContext) Channels() plugin.ChannelRegistry { return c.channels }

func (c *pluginContext) Storage() plugin.StorageAPI { return c.storage }

func (c *pluginContext) Config() plugin.ConfigAPI { return c.cfg }

func (c *pluginContext) Capabilities() plugin.CapabilityRegistry { return c.caps }

func (c *pluginContext) Tools() plugin.ToolRegistry { return c.tools }

func (c *pluginContext) Inject(ctx context.Context, sessionID, content string) error {
	return c.injector.Inject(ctx, c.name, sessionID, content)
}

func (c *pluginContext) CancelInject(sessionID string) bool {
	return c.injector.CancelInject(sessionID)
}

func (c *pluginContext) RegisterContextProvider(p plugin.ContextProvider) error {
	if p == nil || p.ProviderID() == "" {
		return oops.Code("PROVIDER_INVALID").With("plugin", c.name).
			Errorf("context provider needs an id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.providers[p.ProviderID()]; ok {
		return oops.Code("PROVIDER_DUPLICATE").With("plugin", c.name).
			Errorf("context provider %q already registered", p.ProviderID())
	}
	c.providers[p.ProviderID()] = p
	return nil
}

func (c *pluginContext) UnregisterContextProvider(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.providers, id)
}

func (c *pluginContext) RegisterExtension(e plugin.Extension) error {
	if e.ID == "" {
		return oops.Code("EXTENSION_INVALID").With("plugin", c.name).
			Errorf("extension needs an id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.extensions[e.ID]; ok {
		return oops.Code("EXTENSION_DUPLICATE").With("plugin", c.name).
			Errorf("extension %q already registered", e.ID)
	}
	c.extensions[e.ID] = e
	return nil
}

func (c *pluginContext) UnregisterExtension(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.extensions, id)
}

// ContextProviders returns the plugin's registered session context
// providers. Host-side surface, not part of plugin.Context.
func (c *pluginContext) ContextProviders() []plugin.ContextProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]plugin.ContextProvider, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	return out
}

// Extensions returns the plugin's registered UI extensions.
func (c *pluginContext) Extensions() []plugin.Extension {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]plugin.Extension, 0, len(c.extensions))
	for _, e := range c.extensions {
		out = append(out, e)
	}
	return out
}

// teardown force-removes everything the plugin registered through this
// context.
func (c *pluginContext) teardown() {
	c.events.bus.RemoveOwner(c.name)
	c.hooks.hooks.RemoveOwner(c.name)
	c.caps.reg.RemoveOwner(c.name)
	c.tools.reg.RemoveOwner(c.name)
	c.chanBase.RemoveOwner(c.name)

	c.mu.Lock()
	c.providers = make(map[string]plugin.ContextProvider)
	c.extensions = make(map[string]plugin.Extension)
	c.mu.Unlock()
}

// ownedBus tags bus subscriptions with the plugin name.
type ownedBus struct {
	owner string
	bus   *bus.Bus
}

func (o *ownedBus) On(t plugin.EventType, h plugin.Handler) (plugin.Subscription, error) {
	return o.bus.Subscribe(o.owner, t, h, false)
}

func (o *ownedBus) Once(t plugin.EventType, h plugin.Handler) (plugin.Subscription, error) {
	return o.bus.Subscribe(o.owner, t, h, true)
}

func (o *ownedBus) Off(sub plugin.Subscription) { o.bus.Off(sub) }

func (o *ownedBus) Emit(ctx context.Context, t plugin.EventType, payload any) error {
	return o.bus.Emit(ctx, t, payload)
}

// ownedHooks tags hook registrations with the plugin name.
type ownedHooks struct {
	owner string
	hooks *bus.Hooks
}

func (o *ownedHooks) Register(t plugin.EventType, fn plugin.HookFunc, opts ...plugin.HookOption) (plugin.Subscription, error) {
	return o.hooks.RegisterOwned(o.owner, t, fn, opts...)
}

func (o *ownedHooks) Off(sub plugin.Subscription) { o.hooks.Off(sub) }

func (o *ownedHooks) OffByName(name string) { o.hooks.OffByName(name) }

// ownedCaps tags capability provider registrations with the plugin name.
type ownedCaps struct {
	owner string
	reg   *capability.Registry
}

func (o *ownedCaps) RegisterProvider(capName string, p plugin.CapabilityProvider, opts ...plugin.ProviderOption) error {
	return o.reg.RegisterOwned(o.owner, capName, p, opts...)
}

func (o *ownedCaps) UnregisterProvider(capName, providerID string) {
	o.reg.UnregisterProvider(capName, providerID)
}

func (o *ownedCaps) Has(capName string) bool { return o.reg.Has(capName) }

func (o *ownedCaps) Providers(capName string) []plugin.CapabilityProvider {
	return o.reg.Providers(capName)
}

// ownedTools tags tool registrations with the plugin name.
type ownedTools struct {
	owner string
	reg   *a2a.Registry
}

func (o *ownedTools) Register(t plugin.Tool) error {
	return o.reg.RegisterOwned(o.owner, t)
}

func (o *ownedTools) Unregister(name string) { o.reg.Unregister(name) }

func (o *ownedTools) List() []plugin.Tool { return o.reg.List() }

func (o *ownedTools) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	return o.reg.Invoke(ctx, name, args)
}

var (
	_ plugin.Context            = (*pluginContext)(nil)
	_ plugin.EventBus           = (*ownedBus)(nil)
	_ plugin.HookManager        = (*ownedHooks)(nil)
	_ plugin.CapabilityRegistry = (*ownedCaps)(nil)
	_ plugin.ToolRegistry       = (*ownedTools)(nil)
)
