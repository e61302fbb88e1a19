// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import "context"

// ToolFunc executes one tool invocation. Arguments arrive pre-validated
// against the tool's input schema.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named, schema-described function a plugin exposes for invocation
// by other agents.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema document describing the arguments.
	InputSchema map[string]any
	Handler     ToolFunc
}

// ToolRegistry exposes plugin tools to other agents. The host validates
// invocation arguments against the declared input schema before calling the
// handler.
type ToolRegistry interface {
	// Register adds a tool. Duplicate names across all plugins are an
	// error.
	Register(t Tool) error

	// Unregister removes a tool by name. Unknown names are ignored.
	Unregister(name string)

	// List returns the registered tools, sorted by name. Handlers are not
	// included.
	List() []Tool

	// Invoke validates args against the tool's input schema and runs it.
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}
