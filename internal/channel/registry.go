// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package channel implements the per-channel command and message-parser
// registries plugins register into.
package channel

import (
	"sort"
	"sync"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// Registry hands out one Provider per channel id, creating providers on
// first use. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry creates a channel registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*Provider),
	}
}

// Provider implements plugin.ChannelRegistry.
func (r *Registry) Provider(channelID string) plugin.ChannelProvider {
	return r.provider(channelID)
}

func (r *Registry) provider(channelID string) *Provider {
	r.mu.RLock()
	p, ok := r.providers[channelID]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[channelID]; ok {
		return p
	}
	p = newProvider(channelID)
	r.providers[channelID] = p
	return p
}

// Providers implements plugin.ChannelRegistry. Names are sorted for
// deterministic output.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for id := range r.providers {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// RemoveOwner drops every command and parser a plugin registered, across
// all providers. Called by the host when the plugin deactivates.
func (r *Registry) RemoveOwner(owner string) {
	if owner == "" {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		p.removeOwner(owner)
	}
}

// Owned wraps the registry so registrations made through it are attributed
// to a plugin.
func (r *Registry) Owned(owner string) plugin.ChannelRegistry {
	return &ownedRegistry{registry: r, owner: owner}
}

type ownedRegistry struct {
	registry *Registry
	owner    string
}

func (o *ownedRegistry) Provider(channelID string) plugin.ChannelProvider {
	return &ownedProvider{provider: o.registry.provider(channelID), owner: o.owner}
}

func (o *ownedRegistry) Providers() []string {
	return o.registry.Providers()
}
