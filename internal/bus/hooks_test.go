// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-net/wopr/internal/core"
	"github.com/wopr-net/wopr/pkg/plugin"
)

func testEvent(t plugin.EventType) plugin.Event {
	return plugin.Event{ID: core.NewULID(), Type: t, Time: time.Now()}
}

func TestHooks_RunInPriorityOrder(t *testing.T) {
	h := NewHooks(New())
	var order []string

	register := func(name string, priority int) {
		_, err := h.Register(plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
			order = append(order, name)
			return nil
		}, plugin.WithPriority(priority))
		require.NoError(t, err)
	}

	register("late", 90)
	register("early", 10)
	register("middle", 50)

	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	assert.Equal(t, []string{"early", "middle", "late"}, order)
}

func TestHooks_TieBrokenByRegistrationOrder(t *testing.T) {
	h := NewHooks(New())
	var order []string

	for _, name := range []string{"a", "b", "c"} {
		name := name
		_, err := h.Register(plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
			order = append(order, name)
			return nil
		})
		require.NoError(t, err)
	}

	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestHooks_PreventDefaultReportedAndChainContinues(t *testing.T) {
	h := NewHooks(New())
	laterRan := false

	_, err := h.Register(plugin.EventMessageIncoming, func(_ context.Context, he *plugin.HookEvent) error {
		he.PreventDefault()
		return nil
	}, plugin.WithPriority(10))
	require.NoError(t, err)

	_, err = h.Register(plugin.EventMessageIncoming, func(_ context.Context, he *plugin.HookEvent) error {
		laterRan = true
		assert.True(t, he.IsPrevented())
		return nil
	}, plugin.WithPriority(20))
	require.NoError(t, err)

	prevented := h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	assert.True(t, prevented)
	assert.True(t, laterRan, "hooks after preventDefault still run")
}

func TestHooks_PreventDefaultIgnoredForReadOnlyEvents(t *testing.T) {
	h := NewHooks(New())

	_, err := h.Register(plugin.EventPluginLoaded, func(_ context.Context, he *plugin.HookEvent) error {
		he.PreventDefault()
		return nil
	})
	require.NoError(t, err)

	prevented := h.Run(context.Background(), testEvent(plugin.EventPluginLoaded))
	assert.False(t, prevented)
}

func TestHooks_OnceRemovedAfterRun(t *testing.T) {
	h := NewHooks(New())
	calls := 0

	_, err := h.Register(plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		calls++
		return nil
	}, plugin.OnceOnly())
	require.NoError(t, err)

	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	assert.Equal(t, 1, calls)
}

func TestHooks_OffByName(t *testing.T) {
	h := NewHooks(New())
	calls := 0

	_, err := h.Register(plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		calls++
		return nil
	}, plugin.WithName("spam-filter"))
	require.NoError(t, err)

	h.OffByName("spam-filter")
	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	assert.Zero(t, calls)
}

func TestHooks_RemoveOwner(t *testing.T) {
	h := NewHooks(New())
	var got []string

	_, err := h.RegisterOwned("echo", plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		got = append(got, "echo")
		return nil
	})
	require.NoError(t, err)

	_, err = h.RegisterOwned("other", plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		got = append(got, "other")
		return nil
	})
	require.NoError(t, err)

	h.RemoveOwner("echo")
	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	assert.Equal(t, []string{"other"}, got)
}

func TestHooks_FailureIsolatedAndReported(t *testing.T) {
	reporter := New()
	var errorEvents []plugin.ErrorPayload
	_, err := reporter.On(plugin.EventPluginError, func(_ context.Context, ev plugin.Event) error {
		if p, ok := ev.Payload.(plugin.ErrorPayload); ok {
			errorEvents = append(errorEvents, p)
		}
		return nil
	})
	require.NoError(t, err)

	h := NewHooks(reporter)
	laterRan := false

	_, err = h.RegisterOwned("broken", plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		return errors.New("boom")
	}, plugin.WithPriority(10))
	require.NoError(t, err)

	_, err = h.Register(plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		laterRan = true
		return nil
	}, plugin.WithPriority(20))
	require.NoError(t, err)

	h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))

	assert.True(t, laterRan)
	require.Len(t, errorEvents, 1)
	assert.Equal(t, "broken", errorEvents[0].Plugin)
	assert.Equal(t, "hook", errorEvents[0].Context)
}

func TestHooks_PanicRecovered(t *testing.T) {
	h := NewHooks(New())

	_, err := h.Register(plugin.EventMessageIncoming, func(_ context.Context, _ *plugin.HookEvent) error {
		panic("hook panic")
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		h.Run(context.Background(), testEvent(plugin.EventMessageIncoming))
	})
}

func TestHooks_WildcardRejected(t *testing.T) {
	h := NewHooks(New())
	_, err := h.Register(plugin.EventWildcard, func(_ context.Context, _ *plugin.HookEvent) error { return nil })
	assert.Error(t, err)
}
