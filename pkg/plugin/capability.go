// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

// CapabilityProvider fulfills one abstract capability role. Implementations
// are supplied by plugins; the host only needs identity and ordering.
type CapabilityProvider interface {
	// ProviderID distinguishes providers of the same capability.
	ProviderID() string
}

// ProviderOption configures a provider registration.
type ProviderOption func(*ProviderConfig)

// ProviderConfig holds registration options for a capability provider.
type ProviderConfig struct {
	Priority int
}

// WithProviderPriority orders providers of the same capability; lower wins.
// Default 100.
func WithProviderPriority(p int) ProviderOption {
	return func(c *ProviderConfig) { c.Priority = p }
}

// CapabilityRegistry tracks which providers fulfill which capability roles.
// Providers declared in a manifest (provides.capabilities) are registered by
// the host automatically when the plugin initializes and removed when it
// deactivates, whether or not the plugin ever calls this API itself.
type CapabilityRegistry interface {
	// RegisterProvider adds a provider to the ordered set for a
	// capability. Registering the same (capability, provider id) pair
	// again replaces the previous entry.
	RegisterProvider(capability string, p CapabilityProvider, opts ...ProviderOption) error

	// UnregisterProvider removes a provider by (capability, provider id).
	// Unknown pairs are ignored.
	UnregisterProvider(capability, providerID string)

	// Has reports whether at least one provider is registered for the
	// capability.
	Has(capability string) bool

	// Providers returns the providers for a capability in priority order,
	// ties broken by registration order.
	Providers(capability string) []CapabilityProvider
}
