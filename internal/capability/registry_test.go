// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-net/wopr/pkg/plugin"
)

type fakeProvider string

func (f fakeProvider) ProviderID() string { return string(f) }

func providerIDs(ps []plugin.CapabilityProvider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ProviderID()
	}
	return out
}

func TestRegistry_ProvidersOrderedByPriority(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterProvider("responder", fakeProvider("fallback"), plugin.WithProviderPriority(90)))
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("primary"), plugin.WithProviderPriority(10)))
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("secondary"), plugin.WithProviderPriority(50)))

	assert.Equal(t, []string{"primary", "secondary", "fallback"}, providerIDs(r.Providers("responder")))
}

func TestRegistry_TieBrokenByRegistrationOrder(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterProvider("responder", fakeProvider("a")))
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("b")))
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("c")))

	assert.Equal(t, []string{"a", "b", "c"}, providerIDs(r.Providers("responder")))
}

func TestRegistry_ReregisterReplacesInPlace(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterProvider("responder", fakeProvider("echo"), plugin.WithProviderPriority(50)))
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("other"), plugin.WithProviderPriority(60)))

	// Same provider id re-registers with a new priority instead of
	// duplicating the entry.
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("echo"), plugin.WithProviderPriority(70)))

	assert.Equal(t, []string{"other", "echo"}, providerIDs(r.Providers("responder")))
}

func TestRegistry_UnregisterProvider(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterProvider("responder", fakeProvider("echo")))
	assert.True(t, r.Has("responder"))

	r.UnregisterProvider("responder", "echo")
	assert.False(t, r.Has("responder"))
	assert.Empty(t, r.Providers("responder"))

	// Unknown pairs are ignored.
	r.UnregisterProvider("responder", "missing")
	r.UnregisterProvider("missing", "echo")
}

func TestRegistry_RemoveOwner(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterOwned("echo", "responder", fakeProvider("echo-1")))
	require.NoError(t, r.RegisterOwned("echo", "translator", fakeProvider("echo-2")))
	require.NoError(t, r.RegisterOwned("other", "responder", fakeProvider("other-1")))

	r.RemoveOwner("echo")

	assert.Equal(t, []string{"other-1"}, providerIDs(r.Providers("responder")))
	assert.False(t, r.Has("translator"))
	assert.Equal(t, []string{"responder"}, r.Capabilities())
}

func TestRegistry_RejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.RegisterProvider("", fakeProvider("echo")))
	assert.Error(t, r.RegisterProvider("responder", nil))
	assert.Error(t, r.RegisterProvider("responder", fakeProvider("")))
}

func TestRegistry_CapabilitiesSorted(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterProvider("translator", fakeProvider("a")))
	require.NoError(t, r.RegisterProvider("responder", fakeProvider("b")))

	assert.Equal(t, []string{"responder", "translator"}, r.Capabilities())
}
