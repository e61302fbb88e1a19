// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package echo implements the reference in-process plugin. It echoes
// incoming messages back as outgoing ones, serves an "echo" A2A tool, and
// records what it has seen when storage is available.
package echo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// ChannelID is the channel the echo plugin serves.
const ChannelID = "echo"

// Manifest is the echo plugin's static metadata, the in-Go mirror of its
// plugin.yaml.
var Manifest = plugin.Manifest{
	Name:        "echo",
	Version:     "0.1.0",
	Description: "Echoes incoming messages back to their session.",
	Capabilities: []string{
		"events.message.**",
		"channel.echo.*",
		"storage.echo.**",
	},
	Provides: plugin.Provides{
		Capabilities: []plugin.CapabilityDecl{
			{Type: "responder", ID: "echo", Priority: 50},
		},
	},
	Lifecycle: plugin.LifecyclePolicy{
		ShutdownBehavior: plugin.ShutdownDrain,
	},
}

// New builds the echo plugin.
func New() *plugin.Plugin {
	e := &echoState{}
	m := Manifest
	return &plugin.Plugin{
		Name:     "echo",
		Version:  m.Version,
		Manifest: &m,
		Init:     e.init,
		OnDrain:  e.drain,
		Health:   e.health,
		Shutdown: e.shutdown,
		Commands: []plugin.CLICommand{
			{
				Name:        "say",
				Description: "Echo the arguments back, like the plugin would",
				Run: func(_ context.Context, args []string, out io.Writer) error {
					_, err := fmt.Fprintln(out, strings.Join(args, " "))
					return err
				},
			},
		},
	}
}

type echoState struct {
	pc       plugin.Context
	messages *plugin.Repository[seenMessage]
	seen     atomic.Int64
	sub      plugin.Subscription
}

type seenMessage struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

func (e *echoState) init(ctx context.Context, pc plugin.Context) error {
	e.pc = pc

	if storage := pc.Storage(); storage != nil {
		err := storage.Register(ctx, plugin.Schema{
			Namespace: "echo",
			Version:   "0.1.0",
			Tables: []plugin.TableSchema{
				{
					Name: "messages",
					Fields: []plugin.StorageField{
						{Name: "id", Type: plugin.StorageString},
						{Name: "session_id", Type: plugin.StorageString},
						{Name: "content", Type: plugin.StorageString},
					},
					PrimaryKey: "id",
					Indexes:    []string{"session_id"},
				},
			},
		})
		if err != nil {
			return err
		}
		messages, err := storage.Collection("messages")
		if err != nil {
			return err
		}
		e.messages = plugin.NewRepository[seenMessage](messages, "id")
	}

	sub, err := plugin.On(pc.Events(), plugin.TopicMessageIncoming, e.onMessage)
	if err != nil {
		return err
	}
	e.sub = sub

	provider := pc.Channels().Provider(ChannelID)
	provider.RegisterCommand("ping", func(_ context.Context, _ []string, msg plugin.Message) error {
		pc.Logger().Info("ping", "sender", msg.Sender)
		return nil
	})
	provider.AddParser("shout", plugin.MatcherFunc(func(m plugin.Message) bool {
		return strings.HasPrefix(m.Content, "!")
	}), func(_ context.Context, m plugin.Message) error {
		pc.Logger().Info("shout seen", "content", m.Content)
		return nil
	})

	return pc.Tools().Register(plugin.Tool{
		Name:        "echo",
		Description: "Returns the given text unchanged.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []any{"text"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			text, _ := args["text"].(string)
			return text, nil
		},
	})
}

func (e *echoState) onMessage(ctx context.Context, p plugin.MessagePayload) error {
	e.seen.Add(1)

	if e.messages != nil {
		err := e.messages.Insert(ctx, &seenMessage{
			SessionID: p.SessionID,
			Content:   p.Content,
		})
		if err != nil {
			return err
		}
	}

	return plugin.Emit(ctx, e.pc.Events(), plugin.TopicMessageOutgoing, plugin.MessagePayload{
		SessionID: p.SessionID,
		ChannelID: p.ChannelID,
		Sender:    "echo",
		Content:   p.Content,
	})
}

func (e *echoState) drain(_ context.Context) error {
	// No queued work to flush; the handler responds inline.
	return nil
}

func (e *echoState) health(_ context.Context) error {
	return nil
}

func (e *echoState) shutdown(_ context.Context) error {
	e.pc = nil
	return nil
}

// Seen reports how many messages the plugin has echoed.
func (e *echoState) Seen() int64 {
	return e.seen.Load()
}
