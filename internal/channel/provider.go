// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package channel

import (
	"context"
	"sort"
	"sync"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// commandEntry is one registered command handler.
type commandEntry struct {
	owner string
	h     plugin.CommandHandler
}

// parserEntry is one registered (matcher, handler) pair.
type parserEntry struct {
	id      string
	owner   string
	matcher plugin.Matcher
	h       plugin.ParserHandler
}

// Provider is the command and parser registry for one channel. Command
// names are unique per provider; re-registering replaces silently. Parsers
// run in registration order, first match wins.
type Provider struct {
	id string

	mu       sync.RWMutex
	commands map[string]commandEntry
	parsers  []parserEntry
}

func newProvider(id string) *Provider {
	return &Provider{
		id:       id,
		commands: make(map[string]commandEntry),
	}
}

// ID implements plugin.ChannelProvider.
func (p *Provider) ID() string { return p.id }

// RegisterCommand implements plugin.ChannelProvider.
func (p *Provider) RegisterCommand(name string, h plugin.CommandHandler) {
	p.registerCommand("", name, h)
}

func (p *Provider) registerCommand(owner, name string, h plugin.CommandHandler) {
	if name == "" || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands[name] = commandEntry{owner: owner, h: h}
}

// UnregisterCommand implements plugin.ChannelProvider.
func (p *Provider) UnregisterCommand(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.commands, name)
}

// Commands implements plugin.ChannelProvider.
func (p *Provider) Commands() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.commands))
	for name := range p.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Command returns the handler for a command name, if registered.
func (p *Provider) Command(name string) (plugin.CommandHandler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.commands[name]
	return e.h, ok
}

// AddParser implements plugin.ChannelProvider.
func (p *Provider) AddParser(id string, m plugin.Matcher, h plugin.ParserHandler) {
	p.addParser("", id, m, h)
}

func (p *Provider) addParser(owner, id string, m plugin.Matcher, h plugin.ParserHandler) {
	if id == "" || m == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := parserEntry{id: id, owner: owner, matcher: m, h: h}
	for i, cand := range p.parsers {
		if cand.id == id {
			// Replacement keeps the original registration position so
			// dispatch order stays deterministic.
			p.parsers[i] = e
			return
		}
	}
	p.parsers = append(p.parsers, e)
}

// RemoveParser implements plugin.ChannelProvider.
func (p *Provider) RemoveParser(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cand := range p.parsers {
		if cand.id == id {
			p.parsers = append(p.parsers[:i], p.parsers[i+1:]...)
			return
		}
	}
}

// Dispatch implements plugin.ChannelProvider: parsers are tested in
// registration order and the first match runs.
func (p *Provider) Dispatch(ctx context.Context, msg plugin.Message) (bool, error) {
	p.mu.RLock()
	parsers := make([]parserEntry, len(p.parsers))
	copy(parsers, p.parsers)
	p.mu.RUnlock()

	for _, e := range parsers {
		if e.matcher.Match(msg) {
			return true, e.h(ctx, msg)
		}
	}
	return false, nil
}

// removeOwner drops all commands and parsers attributed to a plugin.
func (p *Provider) removeOwner(owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, e := range p.commands {
		if e.owner == owner {
			delete(p.commands, name)
		}
	}
	kept := p.parsers[:0]
	for _, e := range p.parsers {
		if e.owner != owner {
			kept = append(kept, e)
		}
	}
	p.parsers = kept
}

// ownedProvider tags registrations with the owning plugin.
type ownedProvider struct {
	provider *Provider
	owner    string
}

func (o *ownedProvider) ID() string { return o.provider.ID() }

func (o *ownedProvider) RegisterCommand(name string, h plugin.CommandHandler) {
	o.provider.registerCommand(o.owner, name, h)
}

func (o *ownedProvider) UnregisterCommand(name string) { o.provider.UnregisterCommand(name) }

func (o *ownedProvider) Commands() []string { return o.provider.Commands() }

func (o *ownedProvider) AddParser(id string, m plugin.Matcher, h plugin.ParserHandler) {
	o.provider.addParser(o.owner, id, m, h)
}

func (o *ownedProvider) RemoveParser(id string) { o.provider.RemoveParser(id) }

func (o *ownedProvider) Dispatch(ctx context.Context, msg plugin.Message) (bool, error) {
	return o.provider.Dispatch(ctx, msg)
}
