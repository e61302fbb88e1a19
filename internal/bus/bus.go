// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package bus implements the event bus and hook manager shared by all
// loaded plugins.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wopr-net/wopr/internal/core"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// entry is one registered handler.
type entry struct {
	id    plugin.Subscription
	t     plugin.EventType
	owner string
	h     plugin.Handler
	once  bool
	fired bool
}

// Bus is the shared event bus. Safe for concurrent use; each event type's
// handler list is mutated under a single writer lock, so registration from
// multiple plugins cannot corrupt the registry.
type Bus struct {
	mu     sync.RWMutex
	nextID plugin.Subscription
	subs   map[plugin.EventType][]*entry
	byID   map[plugin.Subscription]*entry
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[plugin.EventType][]*entry),
		byID: make(map[plugin.Subscription]*entry),
	}
}

// On implements plugin.EventBus.
func (b *Bus) On(t plugin.EventType, h plugin.Handler) (plugin.Subscription, error) {
	return b.subscribe("", t, h, false)
}

// Once implements plugin.EventBus.
func (b *Bus) Once(t plugin.EventType, h plugin.Handler) (plugin.Subscription, error) {
	return b.subscribe("", t, h, true)
}

// Subscribe registers a handler attributed to a plugin, so handler failures
// are reported against it and the host can clean up on deactivation.
func (b *Bus) Subscribe(owner string, t plugin.EventType, h plugin.Handler, once bool) (plugin.Subscription, error) {
	return b.subscribe(owner, t, h, once)
}

func (b *Bus) subscribe(owner string, t plugin.EventType, h plugin.Handler, once bool) (plugin.Subscription, error) {
	if !plugin.KnownEventType(t) {
		return 0, fmt.Errorf("unknown event type %q", t)
	}
	if h == nil {
		return 0, fmt.Errorf("handler is nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	e := &entry{id: b.nextID, t: t, owner: owner, h: h, once: once}
	b.subs[t] = append(b.subs[t], e)
	b.byID[e.id] = e
	return e.id, nil
}

// Off implements plugin.EventBus.
func (b *Bus) Off(sub plugin.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub plugin.Subscription) {
	e, ok := b.byID[sub]
	if !ok {
		return
	}
	delete(b.byID, sub)
	list := b.subs[e.t]
	for i, cand := range list {
		if cand.id == sub {
			b.subs[e.t] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// RemoveOwner drops every subscription attributed to a plugin. Called by
// the host when the plugin deactivates.
func (b *Bus) RemoveOwner(owner string) {
	if owner == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.byID {
		if e.owner == owner {
			b.removeLocked(id)
		}
	}
}

// Emit implements plugin.EventBus. Handlers for the event run in
// registration order, then wildcard handlers in registration order. Each
// handler's failure is isolated and reported, never propagated.
func (b *Bus) Emit(ctx context.Context, t plugin.EventType, payload any) error {
	if !plugin.KnownEventType(t) || t == plugin.EventWildcard {
		return fmt.Errorf("cannot emit event type %q", t)
	}

	ev := plugin.Event{
		ID:      core.NewULID(),
		Type:    t,
		Time:    time.Now(),
		Payload: payload,
	}

	EventsEmitted.WithLabelValues(string(t)).Inc()

	for _, e := range b.snapshot(t) {
		b.invoke(ctx, e, ev)
	}
	return nil
}

// snapshot returns the handlers to run for an emission, consuming once
// entries so they fire exactly once even under concurrent emits.
func (b *Bus) snapshot(t plugin.EventType) []*entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*entry
	for _, list := range [][]*entry{b.subs[t], b.subs[plugin.EventWildcard]} {
		for _, e := range list {
			if e.once {
				if e.fired {
					continue
				}
				e.fired = true
			}
			out = append(out, e)
		}
	}
	for _, e := range out {
		if e.once {
			b.removeLocked(e.id)
		}
	}
	return out
}

func (b *Bus) invoke(ctx context.Context, e *entry, ev plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.ReportError(ctx, e.owner, "handler", fmt.Errorf("panic in handler for %s: %v", ev.Type, r))
		}
	}()
	if err := e.h(ctx, ev); err != nil {
		// Failures in plugin:error handlers are logged only, so a broken
		// error handler cannot recurse through the bus.
		if ev.Type == plugin.EventPluginError {
			HandlerFailures.WithLabelValues(string(ev.Type), e.owner).Inc()
			slog.Error("plugin:error handler failed",
				"plugin", e.owner,
				"error", err)
			return
		}
		b.ReportError(ctx, e.owner, "handler", err)
	}
}

// ReportError attributes a failure to a plugin: it is logged, counted, and
// surfaced as a plugin:error event.
func (b *Bus) ReportError(ctx context.Context, pluginName, opContext string, err error) {
	HandlerFailures.WithLabelValues(opContext, pluginName).Inc()
	slog.Error("plugin operation failed",
		"plugin", pluginName,
		"context", opContext,
		"error", err)

	//nolint:errcheck // plugin:error is a known event type; Emit cannot fail
	b.Emit(ctx, plugin.EventPluginError, plugin.ErrorPayload{
		Plugin:  pluginName,
		Context: opContext,
		Err:     err,
	})
}
