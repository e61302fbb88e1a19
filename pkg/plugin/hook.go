// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import "context"

// DefaultHookPriority is used when a hook registers without an explicit
// priority. Lower priorities run first.
const DefaultHookPriority = 100

// HookEvent wraps an event for interception. For mutable event types
// (message:incoming, message:outgoing, channel:message) a hook may call
// PreventDefault to suppress the host's default action; later hooks in the
// chain still run for observability. For read-only event types
// PreventDefault is a no-op.
type HookEvent struct {
	Event Event

	prevented bool
}

// PreventDefault suppresses the host's default action for this event.
// Ignored for read-only event types.
func (h *HookEvent) PreventDefault() {
	if h.Event.Type.Mutable() {
		h.prevented = true
	}
}

// IsPrevented reports whether any hook in the chain prevented the default
// action so far.
func (h *HookEvent) IsPrevented() bool {
	return h.prevented
}

// HookFunc intercepts one event. Errors are isolated and reported, not
// propagated to the chain.
type HookFunc func(ctx context.Context, he *HookEvent) error

// HookOption configures a hook registration.
type HookOption func(*HookConfig)

// HookConfig holds registration options for a hook.
type HookConfig struct {
	Name     string
	Priority int
	Once     bool
}

// WithPriority sets the hook's priority. Lower runs first; ties break by
// registration order.
func WithPriority(p int) HookOption {
	return func(c *HookConfig) { c.Priority = p }
}

// WithName names the hook so it can be removed via OffByName.
func WithName(name string) HookOption {
	return func(c *HookConfig) { c.Name = name }
}

// OnceOnly makes the hook auto-remove after its first invocation.
func OnceOnly() HookOption {
	return func(c *HookConfig) { c.Once = true }
}

// HookManager is the priority-ordered interception surface. Distinct from
// the event bus: hooks run before the host performs an event's default
// action and may suppress it; bus handlers observe after the fact.
type HookManager interface {
	// Register adds a hook for an event type. Unknown event types are an
	// error. The wildcard is not accepted for hooks.
	Register(t EventType, h HookFunc, opts ...HookOption) (Subscription, error)

	// Off removes a hook by handle. Unknown handles are ignored.
	Off(sub Subscription)

	// OffByName removes every hook registered under the given name.
	OffByName(name string)
}
