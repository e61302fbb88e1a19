// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package host loads plugins and drives them through the lifecycle state
// machine. Per-plugin transitions are serialized; operations on different
// plugins run concurrently.
package host

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wopr-net/wopr/internal/a2a"
	"github.com/wopr-net/wopr/internal/bus"
	"github.com/wopr-net/wopr/internal/capability"
	"github.com/wopr-net/wopr/internal/channel"
	"github.com/wopr-net/wopr/internal/config"
	"github.com/wopr-net/wopr/internal/inject"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// StorageFactory returns the storage surface for a plugin namespace. A nil
// factory loads plugins without storage access.
type StorageFactory func(namespace string) plugin.StorageAPI

// Options wires a Host to the shared registries. Nil fields get fresh
// in-process defaults, which is what tests want.
type Options struct {
	Logger        *slog.Logger
	Events        *bus.Bus
	Hooks         *bus.Hooks
	Capabilities  *capability.Registry
	Enforcer      *capability.Enforcer
	Channels      *channel.Registry
	Tools         *a2a.Registry
	Injector      *inject.Manager
	Storage       StorageFactory
	ConfigBackend config.Backend
}

// instance is one loaded plugin. Its mutex serializes lifecycle
// transitions, the re-entrancy guard the drain semantics require.
type instance struct {
	mu    sync.Mutex
	p     *plugin.Plugin
	state State
	pc    *pluginContext
	cfg   *config.Config

	stopHealth context.CancelFunc
	healthDone chan struct{}
}

// Host is the plugin runtime.
type Host struct {
	log      *slog.Logger
	events   *bus.Bus
	hooks    *bus.Hooks
	caps     *capability.Registry
	enforcer *capability.Enforcer
	channels *channel.Registry
	tools    *a2a.Registry
	injector *inject.Manager
	storage  StorageFactory
	backend  config.Backend

	mu      sync.RWMutex
	plugins map[string]*instance
}

// New returns a Host over the given shared registries.
func New(opts Options) *Host {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	events := opts.Events
	if events == nil {
		events = bus.New()
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = bus.NewHooks(events)
	}
	caps := opts.Capabilities
	if caps == nil {
		caps = capability.NewRegistry()
	}
	enforcer := opts.Enforcer
	if enforcer == nil {
		enforcer = capability.NewEnforcer()
	}
	channels := opts.Channels
	if channels == nil {
		channels = channel.NewRegistry()
	}
	tools := opts.Tools
	if tools == nil {
		tools = a2a.NewRegistry()
	}
	backend := opts.ConfigBackend
	if backend == nil {
		backend = config.NewMemory()
	}
	injector := opts.Injector
	if injector == nil {
		injector = inject.NewManager(events, hooks, nopDeliverer{}, log)
	}
	return &Host{
		log:      log,
		events:   events,
		hooks:    hooks,
		caps:     caps,
		enforcer: enforcer,
		channels: channels,
		tools:    tools,
		injector: injector,
		storage:  opts.Storage,
		backend:  backend,
		plugins:  make(map[string]*instance),
	}
}

// Events returns the shared event bus.
func (h *Host) Events() *bus.Bus { return h.events }

// Hooks returns the shared hook manager.
func (h *Host) Hooks() *bus.Hooks { return h.hooks }

// Sessions returns the injection manager.
func (h *Host) Sessions() *inject.Manager { return h.injector }

// Enforcer returns the capability grant enforcer.
func (h *Host) Enforcer() *capability.Enforcer { return h.enforcer }

// Load validates, configures, and initializes a plugin. A failed Init is
// load-fatal: the plugin ends up not loaded and its registrations are swept.
func (h *Host) Load(ctx context.Context, p *plugin.Plugin) error {
	if err := p.Validate(); err != nil {
		return oops.Code("PLUGIN_INVALID").Wrap(err)
	}

	inst := &instance{p: p, state: StateUnloaded}
	h.mu.Lock()
	if _, ok := h.plugins[p.Name]; ok {
		h.mu.Unlock()
		return oops.Code("PLUGIN_EXISTS").Errorf("plugin %q is already loaded", p.Name)
	}
	h.plugins[p.Name] = inst
	h.mu.Unlock()

	inst.mu.Lock()
	defer inst.mu.Unlock()

	err := h.initialize(ctx, inst)
	if err != nil {
		h.mu.Lock()
		delete(h.plugins, p.Name)
		h.mu.Unlock()
		return err
	}

	inst.state = StateInitialized
	Transitions.WithLabelValues(p.Name, StateInitialized.String()).Inc()
	h.log.Info("plugin loaded", "plugin", p.Name, "version", p.Version)
	return h.events.Emit(ctx, plugin.EventPluginLoaded, plugin.LifecyclePayload{
		Plugin:  p.Name,
		Version: p.Version,
	})
}

func (h *Host) initialize(ctx context.Context, inst *instance) error {
	p := inst.p

	var schema *plugin.ConfigSchema
	if p.Manifest != nil {
		schema = configSchemaFrom(p.Manifest)
	}
	cfg := config.New(p.Name, schema, h.backend)
	if err := cfg.Hydrate(ctx); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("plugin", p.Name).Wrap(err)
	}
	inst.cfg = cfg

	if p.Manifest != nil {
		if unmet := checkRequirements(p.Manifest.Requirements, cfg); len(unmet) > 0 {
			return oops.Code("REQUIREMENTS_UNMET").
				With("plugin", p.Name).
				Errorf("unmet requirements: %s", strings.Join(unmet, "; "))
		}
		if err := h.enforcer.SetGrants(p.Name, p.Manifest.Capabilities); err != nil {
			return oops.Code("GRANTS_INVALID").With("plugin", p.Name).Wrap(err)
		}
	}

	var storage plugin.StorageAPI
	if h.storage != nil {
		storage = h.storage(p.Name)
	}

	pc := &pluginContext{
		name:       p.Name,
		log:        h.log.With("plugin", p.Name),
		events:     &ownedBus{owner: p.Name, bus: h.events},
		hooks:      &ownedHooks{owner: p.Name, hooks: h.hooks},
		chanBase:   h.channels,
		channels:   h.channels.Owned(p.Name),
		storage:    storage,
		cfg:        cfg,
		caps:       &ownedCaps{owner: p.Name, reg: h.caps},
		tools:      &ownedTools{owner: p.Name, reg: h.tools},
		injector:   h.injector,
		providers:  make(map[string]plugin.ContextProvider),
		extensions: make(map[string]plugin.Extension),
	}
	inst.pc = pc

	if err := p.Init(ctx, pc); err != nil {
		pc.teardown()
		h.enforcer.RemoveGrants(p.Name)
		return oops.Code("INIT_FAILED").With("plugin", p.Name).Wrap(err)
	}

	// Manifest-declared providers register around the lifecycle whether or
	// not the plugin uses the imperative API.
	if p.Manifest != nil {
		for _, decl := range p.Manifest.Provides.Capabilities {
			var opts []plugin.ProviderOption
			if decl.Priority > 0 {
				opts = append(opts, plugin.WithProviderPriority(decl.Priority))
			}
			err := h.caps.RegisterOwned(p.Name, decl.Type, declaredProvider{id: decl.ID}, opts...)
			if err != nil {
				pc.teardown()
				h.enforcer.RemoveGrants(p.Name)
				return oops.Code("PROVIDES_FAILED").With("plugin", p.Name).Wrap(err)
			}
		}
	}
	return nil
}

// Activate moves an initialized plugin to Active and starts its health
// poller.
func (h *Host) Activate(ctx context.Context, name string) error {
	inst, err := h.get(name)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.state != StateInitialized {
		return oops.Code("BAD_TRANSITION").
			With("plugin", name).
			With("state", inst.state.String()).
			Errorf("plugin %q cannot activate from %s", name, inst.state)
	}

	if missing := inst.cfg.MissingRequired(); len(missing) > 0 {
		return oops.Code("CONFIG_REQUIRED_MISSING").
			With("plugin", name).
			Errorf("required config not set: %s", strings.Join(missing, ", "))
	}

	if inst.p.OnActivate != nil {
		if err := inst.p.OnActivate(ctx); err != nil {
			return oops.Code("ACTIVATE_FAILED").With("plugin", name).Wrap(err)
		}
	}

	if inst.p.Health != nil {
		hctx, cancel := context.WithCancel(context.Background())
		inst.stopHealth = cancel
		inst.healthDone = make(chan struct{})
		go h.healthLoop(hctx, inst)
	}

	inst.state = StateActive
	Transitions.WithLabelValues(name, StateActive.String()).Inc()
	h.log.Info("plugin active", "plugin", name)
	return nil
}

// Deactivate tears a plugin down according to its manifest's shutdown
// behavior. Callback errors and timeouts are reported, not returned: the
// teardown always completes and the plugin ends Deactivated.
func (h *Host) Deactivate(ctx context.Context, name string) error {
	inst, err := h.get(name)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	switch inst.state {
	case StateInitialized, StateActive:
	case StateDeactivated:
		return nil
	default:
		return oops.Code("BAD_TRANSITION").
			With("plugin", name).
			With("state", inst.state.String()).
			Errorf("plugin %q cannot deactivate from %s", name, inst.state)
	}

	if inst.stopHealth != nil {
		inst.stopHealth()
		<-inst.healthDone
		inst.stopHealth = nil
	}

	policy := plugin.LifecyclePolicy{}
	if inst.p.Manifest != nil {
		policy = inst.p.Manifest.Lifecycle
	}
	timeout := policy.ShutdownTimeout()

	switch policy.Behavior() {
	case plugin.ShutdownImmediate:
		// Fire callbacks without waiting; the context is gone either way.
		if cb := inst.p.OnDeactivate; cb != nil {
			go h.reportCallback(name, "deactivate", cb)
		}
		if cb := inst.p.Shutdown; cb != nil {
			go h.reportCallback(name, "shutdown", cb)
		}
	case plugin.ShutdownDrain:
		if inst.p.OnDrain != nil && inst.state == StateActive {
			inst.state = StateDraining
			Transitions.WithLabelValues(name, StateDraining.String()).Inc()

			start := time.Now()
			err, timedOut := callBounded(ctx, timeout, inst.p.OnDrain)
			if timedOut {
				DrainTimeouts.WithLabelValues(name).Inc()
				h.log.Warn("plugin drain timed out",
					"plugin", name, "timeout", timeout)
			}
			if err != nil {
				h.events.ReportError(ctx, name, "drain", err)
			}
			if emitErr := h.events.Emit(ctx, plugin.EventPluginDrained, plugin.DrainedPayload{
				Plugin:   name,
				TimedOut: timedOut,
				Elapsed:  time.Since(start),
			}); emitErr != nil {
				h.log.Warn("emit plugin:drained failed", "plugin", name, "error", emitErr)
			}
		}
		h.runBounded(ctx, inst, name, timeout)
	default: // graceful
		h.runBounded(ctx, inst, name, timeout)
	}

	inst.pc.teardown()
	h.enforcer.RemoveGrants(name)

	inst.state = StateDeactivated
	Transitions.WithLabelValues(name, StateDeactivated.String()).Inc()
	h.log.Info("plugin deactivated", "plugin", name)
	return h.events.Emit(ctx, plugin.EventPluginUnloaded, plugin.LifecyclePayload{
		Plugin:  name,
		Version: inst.p.Version,
	})
}

// runBounded runs OnDeactivate then Shutdown, each bounded by the shutdown
// timeout. OnDrain has already completed by the time this runs.
func (h *Host) runBounded(ctx context.Context, inst *instance, name string, timeout time.Duration) {
	for _, step := range []struct {
		what string
		fn   func(context.Context) error
	}{
		{"deactivate", inst.p.OnDeactivate},
		{"shutdown", inst.p.Shutdown},
	} {
		if step.fn == nil {
			continue
		}
		err, timedOut := callBounded(ctx, timeout, step.fn)
		if timedOut {
			h.log.Warn("plugin shutdown callback timed out",
				"plugin", name, "callback", step.what, "timeout", timeout)
		}
		if err != nil {
			h.events.ReportError(ctx, name, step.what, err)
		}
	}
}

func (h *Host) reportCallback(name, what string, fn func(context.Context) error) {
	if err := fn(context.Background()); err != nil {
		h.log.Warn("plugin callback failed after immediate shutdown",
			"plugin", name, "callback", what, "error", err)
	}
}

// Unload deactivates (if needed) and forgets a plugin.
func (h *Host) Unload(ctx context.Context, name string) error {
	if err := h.Deactivate(ctx, name); err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.plugins, name)
	h.mu.Unlock()
	return nil
}

// ShutdownAll deactivates every plugin concurrently.
func (h *Host) ShutdownAll(ctx context.Context) {
	h.mu.RLock()
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := h.Deactivate(ctx, name); err != nil {
				h.log.Warn("deactivate failed", "plugin", name, "error", err)
			}
		}(name)
	}
	wg.Wait()
}

// State returns a plugin's lifecycle state.
func (h *Host) State(name string) (State, bool) {
	inst, err := h.get(name)
	if err != nil {
		return StateUnloaded, false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state, true
}

// Plugins returns loaded plugin names, sorted.
func (h *Host) Plugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns the CLI commands a plugin contributes.
func (h *Host) Commands(name string) []plugin.CLICommand {
	inst, err := h.get(name)
	if err != nil {
		return nil
	}
	return inst.p.Commands
}

// Extensions returns every UI extension registered by active plugins.
func (h *Host) Extensions() []plugin.Extension {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []plugin.Extension
	for _, inst := range h.plugins {
		if inst.pc != nil {
			out = append(out, inst.pc.Extensions()...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ComposeContext collects context text for a session from every registered
// context provider. Provider failures are reported and skipped.
func (h *Host) ComposeContext(ctx context.Context, sessionID string) string {
	h.mu.RLock()
	insts := make([]*instance, 0, len(h.plugins))
	for _, inst := range h.plugins {
		insts = append(insts, inst)
	}
	h.mu.RUnlock()

	var parts []string
	for _, inst := range insts {
		if inst.pc == nil {
			continue
		}
		for _, p := range inst.pc.ContextProviders() {
			text, err := p.Provide(ctx, sessionID)
			if err != nil {
				h.events.ReportError(ctx, inst.p.Name, "context-provider", err)
				continue
			}
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "\n")
}

func (h *Host) get(name string) (*instance, error) {
	h.mu.RLock()
	inst, ok := h.plugins[name]
	h.mu.RUnlock()
	if !ok {
		return nil, oops.Code("PLUGIN_UNKNOWN").Errorf("plugin %q is not loaded", name)
	}
	return inst, nil
}

// healthLoop polls the plugin's liveness probe until canceled. Failures are
// reported, never silently dropped.
func (h *Host) healthLoop(ctx context.Context, inst *instance) {
	defer close(inst.healthDone)

	interval := plugin.DefaultHealthInterval
	if inst.p.Manifest != nil {
		interval = inst.p.Manifest.Lifecycle.HealthInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err, timedOut := callBounded(ctx, interval, inst.p.Health)
			if timedOut {
				err = oops.Code("HEALTH_TIMEOUT").
					Errorf("health probe exceeded %s", interval)
			}
			if err != nil {
				HealthFailures.WithLabelValues(inst.p.Name).Inc()
				h.events.ReportError(ctx, inst.p.Name, "health", err)
			}
		}
	}
}

// callBounded runs fn with a deadline. On timeout the callback keeps
// running on its own goroutine with a canceled context; the host proceeds.
func callBounded(ctx context.Context, d time.Duration, fn func(context.Context) error) (error, bool) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err, false
	case <-ctx.Done():
		return nil, true
	}
}

// configSchemaFrom aggregates the manifest's setup step fields into the
// plugin's config schema.
func configSchemaFrom(m *plugin.Manifest) *plugin.ConfigSchema {
	var fields []plugin.ConfigField
	for _, step := range m.Setup {
		fields = append(fields, step.Fields...)
	}
	if len(fields) == 0 {
		return nil
	}
	return &plugin.ConfigSchema{Fields: fields}
}

// declaredProvider backs a manifest-declared capability until the plugin
// registers a concrete one under the same id.
type declaredProvider struct {
	id string
}

func (d declaredProvider) ProviderID() string { return d.id }

// nopDeliverer drops injected output. Used when no channel transport is
// wired, e.g. in tests.
type nopDeliverer struct{}

func (nopDeliverer) Deliver(context.Context, string, string, string) error { return nil }
