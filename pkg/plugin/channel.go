// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"time"
)

// Message is one protocol-level message on a channel.
type Message struct {
	ID        string
	ChannelID string
	Sender    string
	Content   string
	Time      time.Time
}

// CommandHandler handles one invocation of a channel command.
type CommandHandler func(ctx context.Context, args []string, msg Message) error

// ParserHandler handles a message matched by a registered parser.
type ParserHandler func(ctx context.Context, msg Message) error

// Matcher decides whether a parser applies to a message.
type Matcher interface {
	Match(msg Message) bool
}

// MatcherFunc adapts a predicate to a Matcher.
type MatcherFunc func(msg Message) bool

// Match implements Matcher.
func (f MatcherFunc) Match(msg Message) bool { return f(msg) }

// Literal matches messages whose content equals the literal exactly.
type Literal string

// Match implements Matcher.
func (l Literal) Match(msg Message) bool { return msg.Content == string(l) }

// ChannelProvider exposes the command and message-parser registries for one
// communication surface. Command names are unique per provider;
// re-registering a name replaces the previous handler. Two providers'
// command namespaces are fully independent.
type ChannelProvider interface {
	// ID returns the channel id this provider serves.
	ID() string

	// RegisterCommand maps a command name to a handler, replacing any
	// previous handler for that name.
	RegisterCommand(name string, h CommandHandler)

	// UnregisterCommand removes a command. Unknown names are ignored.
	UnregisterCommand(name string)

	// Commands returns the registered command names, sorted.
	Commands() []string

	// AddParser registers a (matcher, handler) pair under an id, replacing
	// any previous parser with that id.
	AddParser(id string, m Matcher, h ParserHandler)

	// RemoveParser removes a parser by id. Unknown ids are ignored.
	RemoveParser(id string)

	// Dispatch tests the message against parsers in registration order and
	// runs the first match. Returns whether any parser matched.
	Dispatch(ctx context.Context, msg Message) (bool, error)
}

// ChannelRegistry hands out providers keyed by channel id, creating them on
// first use.
type ChannelRegistry interface {
	Provider(channelID string) ChannelProvider
	Providers() []string
}
