// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package capability

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// compiledGrant holds a pattern and its compiled glob for efficient
// matching.
type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer answers whether a plugin is granted a capability at runtime.
//
// Pattern matching uses gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment (does not cross '.')
//   - '**' matches zero or more segments (crosses '.')
//
// Examples:
//   - "storage.read.*" matches "storage.read.notes" but NOT "storage.read.notes.title"
//   - "storage.**" matches all descendants
//   - "**" matches any capability
//
// Enforcer is safe for concurrent use.
type Enforcer struct {
	grants map[string][]compiledGrant // plugin name -> compiled grants
	mu     sync.RWMutex
}

// NewEnforcer creates a capability enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{
		grants: make(map[string][]compiledGrant),
	}
}

// SetGrants configures granted capability patterns for a plugin, replacing
// any previous grants. If any pattern fails to compile, no changes are made
// (atomic all-or-nothing semantics). The patterns slice is copied.
func (e *Enforcer) SetGrants(pluginName string, patterns []string) error {
	if pluginName == "" {
		return errors.New("plugin name cannot be empty")
	}

	// Compile all patterns before acquiring the lock (fail-fast, atomic).
	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return fmt.Errorf("grant %d: empty capability pattern", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return fmt.Errorf("grant %d (%q): %w", i, pattern, err)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.grants[pluginName] = compiled
	return nil
}

// RemoveGrants unregisters a plugin, removing all its grants. Safe to call
// for unknown plugins.
func (e *Enforcer) RemoveGrants(pluginName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, pluginName)
}

// Grants returns a defensive copy of the patterns granted to a plugin, or
// nil if the plugin is not registered.
func (e *Enforcer) Grants(pluginName string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[pluginName]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check returns true if the plugin is granted the requested capability.
// Unknown plugins, empty plugin names, and empty capability strings are
// denied by default without error.
func (e *Enforcer) Check(pluginName, capability string) bool {
	if capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, grant := range e.grants[pluginName] {
		if grant.glob.Match(capability) {
			return true
		}
	}
	return false
}
