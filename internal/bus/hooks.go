// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// hookEntry is one registered hook.
type hookEntry struct {
	id       plugin.Subscription
	t        plugin.EventType
	owner    string
	name     string
	priority int
	seq      uint64
	once     bool
	fn       plugin.HookFunc
}

// Hooks is the shared hook manager. Chains execute in ascending priority
// order, ties broken by registration order.
type Hooks struct {
	mu      sync.RWMutex
	nextID  plugin.Subscription
	nextSeq uint64
	chains  map[plugin.EventType][]*hookEntry
	byID    map[plugin.Subscription]*hookEntry

	// reporter isolates and attributes hook failures.
	reporter *Bus
}

// NewHooks creates a hook manager that reports failures through the bus.
func NewHooks(reporter *Bus) *Hooks {
	return &Hooks{
		chains:   make(map[plugin.EventType][]*hookEntry),
		byID:     make(map[plugin.Subscription]*hookEntry),
		reporter: reporter,
	}
}

// Register implements plugin.HookManager.
func (h *Hooks) Register(t plugin.EventType, fn plugin.HookFunc, opts ...plugin.HookOption) (plugin.Subscription, error) {
	return h.RegisterOwned("", t, fn, opts...)
}

// RegisterOwned registers a hook attributed to a plugin.
func (h *Hooks) RegisterOwned(owner string, t plugin.EventType, fn plugin.HookFunc, opts ...plugin.HookOption) (plugin.Subscription, error) {
	if t == plugin.EventWildcard || !plugin.KnownEventType(t) {
		return 0, fmt.Errorf("cannot hook event type %q", t)
	}
	if fn == nil {
		return 0, fmt.Errorf("hook is nil")
	}

	cfg := plugin.HookConfig{Priority: plugin.DefaultHookPriority}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.nextSeq++
	e := &hookEntry{
		id:       h.nextID,
		t:        t,
		owner:    owner,
		name:     cfg.Name,
		priority: cfg.Priority,
		seq:      h.nextSeq,
		once:     cfg.Once,
		fn:       fn,
	}

	chain := append(h.chains[t], e)
	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].priority != chain[j].priority {
			return chain[i].priority < chain[j].priority
		}
		return chain[i].seq < chain[j].seq
	})
	h.chains[t] = chain
	h.byID[e.id] = e
	return e.id, nil
}

// Off implements plugin.HookManager.
func (h *Hooks) Off(sub plugin.Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// OffByName implements plugin.HookManager.
func (h *Hooks) OffByName(name string) {
	if name == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, e := range h.byID {
		if e.name == name {
			h.removeLocked(id)
		}
	}
}

// RemoveOwner drops every hook attributed to a plugin.
func (h *Hooks) RemoveOwner(owner string) {
	if owner == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, e := range h.byID {
		if e.owner == owner {
			h.removeLocked(id)
		}
	}
}

func (h *Hooks) removeLocked(sub plugin.Subscription) {
	e, ok := h.byID[sub]
	if !ok {
		return
	}
	delete(h.byID, sub)
	chain := h.chains[e.t]
	for i, cand := range chain {
		if cand.id == sub {
			h.chains[e.t] = append(chain[:i], chain[i+1:]...)
			return
		}
	}
}

// Run executes the hook chain for an event and reports whether any mutable
// hook prevented the default action. Hooks after a preventDefault still run
// for observability. Hook failures are isolated and reported against the
// owning plugin.
func (h *Hooks) Run(ctx context.Context, ev plugin.Event) bool {
	h.mu.Lock()
	chain := make([]*hookEntry, len(h.chains[ev.Type]))
	copy(chain, h.chains[ev.Type])
	for _, e := range chain {
		if e.once {
			h.removeLocked(e.id)
		}
	}
	h.mu.Unlock()

	he := &plugin.HookEvent{Event: ev}
	for _, e := range chain {
		h.invoke(ctx, e, he)
	}
	return he.IsPrevented()
}

func (h *Hooks) invoke(ctx context.Context, e *hookEntry, he *plugin.HookEvent) {
	defer func() {
		if r := recover(); r != nil {
			HooksExecuted.WithLabelValues(string(e.t), "panic").Inc()
			h.reporter.ReportError(ctx, e.owner, "hook", fmt.Errorf("panic in hook for %s: %v", e.t, r))
		}
	}()
	if err := e.fn(ctx, he); err != nil {
		HooksExecuted.WithLabelValues(string(e.t), "error").Inc()
		h.reporter.ReportError(ctx, e.owner, "hook", err)
		return
	}
	HooksExecuted.WithLabelValues(string(e.t), "ok").Inc()
}
