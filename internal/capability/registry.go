// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package capability provides the capability provider registry and runtime
// grant enforcement for plugins.
package capability

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// providerEntry holds one registered provider with its ordering keys.
type providerEntry struct {
	provider plugin.CapabilityProvider
	owner    string
	priority int
	seq      uint64
}

// Registry tracks which providers fulfill which capability roles. Safe for
// concurrent use; each mutation holds the registry's single writer lock.
type Registry struct {
	mu        sync.RWMutex
	nextSeq   uint64
	providers map[string][]providerEntry // capability -> ordered providers
}

// NewRegistry creates a capability provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string][]providerEntry),
	}
}

// RegisterProvider implements plugin.CapabilityRegistry.
func (r *Registry) RegisterProvider(capability string, p plugin.CapabilityProvider, opts ...plugin.ProviderOption) error {
	return r.RegisterOwned("", capability, p, opts...)
}

// RegisterOwned registers a provider attributed to a plugin, so the host
// can remove all of a plugin's providers at deactivation.
func (r *Registry) RegisterOwned(owner, capability string, p plugin.CapabilityProvider, opts ...plugin.ProviderOption) error {
	if capability == "" {
		return fmt.Errorf("capability cannot be empty")
	}
	if p == nil || p.ProviderID() == "" {
		return fmt.Errorf("capability %q: provider must have an id", capability)
	}

	cfg := plugin.ProviderConfig{Priority: plugin.DefaultHookPriority}
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	e := providerEntry{provider: p, owner: owner, priority: cfg.Priority, seq: r.nextSeq}

	list := r.providers[capability]
	// Same (capability, provider id) replaces the previous entry in place.
	for i, cand := range list {
		if cand.provider.ProviderID() == p.ProviderID() {
			list[i] = e
			r.resortLocked(capability, list)
			return nil
		}
	}
	r.resortLocked(capability, append(list, e))
	return nil
}

func (r *Registry) resortLocked(capability string, list []providerEntry) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	r.providers[capability] = list
}

// UnregisterProvider implements plugin.CapabilityRegistry.
func (r *Registry) UnregisterProvider(capability, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.providers[capability]
	for i, e := range list {
		if e.provider.ProviderID() == providerID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.providers, capability)
		return
	}
	r.providers[capability] = list
}

// RemoveOwner drops every provider attributed to a plugin.
func (r *Registry) RemoveOwner(owner string) {
	if owner == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for capability, list := range r.providers {
		kept := list[:0]
		for _, e := range list {
			if e.owner != owner {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.providers, capability)
			continue
		}
		r.providers[capability] = kept
	}
}

// Has implements plugin.CapabilityRegistry.
func (r *Registry) Has(capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers[capability]) > 0
}

// Providers implements plugin.CapabilityRegistry. The returned slice is a
// defensive copy in priority order, ties broken by registration order.
func (r *Registry) Providers(capability string) []plugin.CapabilityProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.providers[capability]
	out := make([]plugin.CapabilityProvider, len(list))
	for i, e := range list {
		out[i] = e.provider
	}
	return out
}

// Capabilities returns all capability roles with at least one provider,
// sorted for deterministic output.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.providers))
	for capability := range r.providers {
		out = append(out, capability)
	}
	sort.Strings(out)
	return out
}
