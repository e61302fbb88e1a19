// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package inject tracks sessions and delivers injected content into them.
// An injection behaves like a message arriving from the session's channel:
// the message:incoming hook chain runs first and can prevent delivery, and
// cancellation suppresses output without halting in-flight work.
package inject

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/wopr-net/wopr/internal/bus"
	"github.com/wopr-net/wopr/internal/core"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// Deliverer performs the default action for an injected message, normally
// handing it to the session's channel provider.
type Deliverer interface {
	Deliver(ctx context.Context, sessionID, channelID, content string) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, sessionID, channelID, content string) error

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, sessionID, channelID, content string) error {
	return f(ctx, sessionID, channelID, content)
}

type session struct {
	id        string
	channelID string
	created   time.Time

	mu       sync.Mutex
	inflight map[uint64]*injection
}

type injection struct {
	cancel   context.CancelFunc
	canceled atomic.Bool
}

// Manager owns the session registry and injection lifecycle.
type Manager struct {
	events  *bus.Bus
	hooks   *bus.Hooks
	deliver Deliverer
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	nextID   uint64
}

// NewManager wires a session manager to the shared bus and hook chains.
func NewManager(events *bus.Bus, hooks *bus.Hooks, deliver Deliverer, log *slog.Logger) *Manager {
	return &Manager{
		events:   events,
		hooks:    hooks,
		deliver:  deliver,
		log:      log,
		sessions: make(map[string]*session),
	}
}

// CreateSession registers a session and emits session:create.
func (m *Manager) CreateSession(ctx context.Context, sessionID, channelID string) error {
	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return oops.Code("SESSION_EXISTS").Errorf("session %q already exists", sessionID)
	}
	m.sessions[sessionID] = &session{
		id:        sessionID,
		channelID: channelID,
		created:   time.Now(),
		inflight:  make(map[uint64]*injection),
	}
	m.mu.Unlock()

	return m.events.Emit(ctx, plugin.EventSessionCreate, plugin.SessionPayload{
		SessionID: sessionID,
		ChannelID: channelID,
	})
}

// DestroySession cancels in-flight injections, removes the session, and
// emits session:destroy. Unknown sessions are ignored.
func (m *Manager) DestroySession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	s.cancelAll()
	return m.events.Emit(ctx, plugin.EventSessionDestroy, plugin.SessionPayload{
		SessionID: sessionID,
		ChannelID: s.channelID,
	})
}

// Session reports whether a session exists and its channel.
func (m *Manager) Session(sessionID string) (channelID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}
	return s.channelID, true
}

// Inject delivers content into a session on behalf of a plugin. The
// message:incoming hook chain runs first; a prevented event or a
// cancellation suppresses delivery but the bus still sees the event.
func (m *Manager) Inject(ctx context.Context, pluginName, sessionID, content string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		m.nextID++
	}
	id := m.nextID
	m.mu.Unlock()
	if !ok {
		return oops.Code("SESSION_UNKNOWN").
			With("plugin", pluginName).
			Errorf("session %q does not exist", sessionID)
	}

	ctx, cancel := context.WithCancel(ctx)
	inj := &injection{cancel: cancel}
	s.track(id, inj)
	defer s.untrack(id)
	defer cancel()

	payload := plugin.MessagePayload{
		SessionID: sessionID,
		ChannelID: s.channelID,
		Sender:    pluginName,
		Content:   content,
	}
	ev := plugin.Event{
		ID:      core.NewULID(),
		Type:    plugin.EventMessageIncoming,
		Time:    time.Now(),
		Payload: payload,
	}

	prevented := m.hooks.Run(ctx, ev)

	if err := m.events.Emit(ctx, plugin.EventMessageIncoming, payload); err != nil {
		return err
	}

	if prevented {
		m.log.Debug("injection prevented by hook",
			"plugin", pluginName, "session", sessionID)
		return nil
	}
	if inj.wasCanceled() || ctx.Err() != nil {
		m.log.Debug("injection canceled",
			"plugin", pluginName, "session", sessionID)
		return nil
	}
	return m.deliver.Deliver(ctx, sessionID, s.channelID, content)
}

// CancelInject cancels in-flight injections for a session. Best-effort: it
// reports whether any cancellation was applied, and running work is not
// interrupted beyond its context.
func (m *Manager) CancelInject(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return s.cancelAll()
}

func (s *session) track(id uint64, inj *injection) {
	s.mu.Lock()
	s.inflight[id] = inj
	s.mu.Unlock()
}

func (s *session) untrack(id uint64) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *session) cancelAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	any := false
	for _, inj := range s.inflight {
		inj.canceled.Store(true)
		inj.cancel()
		any = true
	}
	return any
}

func (i *injection) wasCanceled() bool {
	return i.canceled.Load()
}
