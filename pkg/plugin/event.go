// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of event. The set of event types is closed;
// the bus rejects subscriptions for unknown types.
type EventType string

// Event types understood by the bus and the hook manager.
const (
	EventMessageIncoming EventType = "message:incoming"
	EventMessageOutgoing EventType = "message:outgoing"
	EventChannelMessage  EventType = "channel:message"
	EventSessionCreate   EventType = "session:create"
	EventSessionDestroy  EventType = "session:destroy"
	EventPluginError     EventType = "plugin:error"
	EventPluginDrained   EventType = "plugin:drained"
	EventPluginLoaded    EventType = "plugin:loaded"
	EventPluginUnloaded  EventType = "plugin:unloaded"

	// EventWildcard subscribes to every event.
	EventWildcard EventType = "*"
)

// EventTypes returns all concrete event types, excluding the wildcard.
func EventTypes() []EventType {
	return []EventType{
		EventMessageIncoming,
		EventMessageOutgoing,
		EventChannelMessage,
		EventSessionCreate,
		EventSessionDestroy,
		EventPluginError,
		EventPluginDrained,
		EventPluginLoaded,
		EventPluginUnloaded,
	}
}

// KnownEventType reports whether t is in the closed event set (wildcard
// included).
func KnownEventType(t EventType) bool {
	if t == EventWildcard {
		return true
	}
	for _, k := range EventTypes() {
		if t == k {
			return true
		}
	}
	return false
}

// Mutable reports whether hooks for this event type may prevent the host's
// default action. Session events are observation-only.
func (t EventType) Mutable() bool {
	switch t {
	case EventMessageIncoming, EventMessageOutgoing, EventChannelMessage:
		return true
	default:
		return false
	}
}

// Event is the envelope delivered to subscribers and hooks.
type Event struct {
	ID      ulid.ULID
	Type    EventType
	Time    time.Time
	Payload any
}

// MessagePayload is carried by message:incoming and message:outgoing.
type MessagePayload struct {
	SessionID string
	ChannelID string
	Sender    string
	Content   string
	// Metadata carries channel-specific extras the typed fields don't cover.
	Metadata map[string]any
}

// ChannelMessagePayload is carried by channel:message.
type ChannelMessagePayload struct {
	ChannelID string
	Message   Message
}

// SessionPayload is carried by session:create and session:destroy.
type SessionPayload struct {
	SessionID string
	ChannelID string
}

// ErrorPayload is carried by plugin:error. Errors are attributed to a
// specific plugin so operators can isolate misbehavior.
type ErrorPayload struct {
	Plugin string
	// Context names the operation that failed ("hook", "handler", "drain").
	Context string
	Err     error
}

// DrainedPayload is carried by plugin:drained after a drain completes or
// times out.
type DrainedPayload struct {
	Plugin   string
	TimedOut bool
	Elapsed  time.Duration
}

// LifecyclePayload is carried by plugin:loaded and plugin:unloaded.
type LifecyclePayload struct {
	Plugin  string
	Version string
}

// Handler processes one event. A handler error is isolated: it is reported
// via plugin:error and never aborts sibling handlers or the emit.
type Handler func(ctx context.Context, ev Event) error

// Subscription is an opaque handle to a registered handler or hook.
type Subscription uint64

// EventBus is fire-and-forget publish/subscribe over the closed event set.
type EventBus interface {
	// On registers a handler. Handlers for the same event run in
	// registration order. Subscribing to an unknown event type is an error.
	On(t EventType, h Handler) (Subscription, error)

	// Once registers a handler that auto-removes after its first
	// invocation.
	Once(t EventType, h Handler) (Subscription, error)

	// Off removes a subscription. Unknown handles are ignored.
	Off(sub Subscription)

	// Emit delivers the payload to every handler for t plus wildcard
	// handlers, awaiting each. Handler failures are isolated and reported;
	// Emit itself only fails for unknown event types.
	Emit(ctx context.Context, t EventType, payload any) error
}

// Topic pairs an event type with its payload type, giving compile-time
// safety for publish/subscribe pairs.
type Topic[P any] struct {
	Type EventType
}

// Typed topics, one per entry in the closed event map.
var (
	TopicMessageIncoming = Topic[MessagePayload]{EventMessageIncoming}
	TopicMessageOutgoing = Topic[MessagePayload]{EventMessageOutgoing}
	TopicChannelMessage  = Topic[ChannelMessagePayload]{EventChannelMessage}
	TopicSessionCreate   = Topic[SessionPayload]{EventSessionCreate}
	TopicSessionDestroy  = Topic[SessionPayload]{EventSessionDestroy}
	TopicPluginError     = Topic[ErrorPayload]{EventPluginError}
	TopicPluginDrained   = Topic[DrainedPayload]{EventPluginDrained}
	TopicPluginLoaded    = Topic[LifecyclePayload]{EventPluginLoaded}
	TopicPluginUnloaded  = Topic[LifecyclePayload]{EventPluginUnloaded}
)

// On subscribes a typed handler to a topic.
func On[P any](bus EventBus, t Topic[P], h func(ctx context.Context, p P) error) (Subscription, error) {
	return bus.On(t.Type, typedHandler(t, h))
}

// Once subscribes a typed handler that fires at most once.
func Once[P any](bus EventBus, t Topic[P], h func(ctx context.Context, p P) error) (Subscription, error) {
	return bus.Once(t.Type, typedHandler(t, h))
}

// Emit publishes a typed payload to a topic.
func Emit[P any](ctx context.Context, bus EventBus, t Topic[P], p P) error {
	return bus.Emit(ctx, t.Type, p)
}

func typedHandler[P any](t Topic[P], h func(ctx context.Context, p P) error) Handler {
	return func(ctx context.Context, ev Event) error {
		p, ok := ev.Payload.(P)
		if !ok {
			return fmt.Errorf("event %s: payload is %T, want %T", t.Type, ev.Payload, p)
		}
		return h(ctx, p)
	}
}
