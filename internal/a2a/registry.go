// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package a2a exposes plugin tools to other agents. Tools are named
// functions with JSON Schema described inputs; the registry validates
// arguments before dispatching.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wopr-net/wopr/pkg/plugin"
)

type entry struct {
	tool   plugin.Tool
	owner  string
	schema *jsonschema.Schema // nil when the tool declares no input schema
}

// Registry implements plugin.ToolRegistry. Tool names are global across
// plugins.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register implements plugin.ToolRegistry.
func (r *Registry) Register(t plugin.Tool) error {
	return r.RegisterOwned("", t)
}

// RegisterOwned registers a tool tagged with its owning plugin so the host
// can sweep registrations on unload.
func (r *Registry) RegisterOwned(owner string, t plugin.Tool) error {
	if t.Name == "" {
		return oops.Code("TOOL_INVALID").Errorf("tool has no name")
	}
	if t.Handler == nil {
		return oops.Code("TOOL_INVALID").Errorf("tool %q has no handler", t.Name)
	}

	var compiled *jsonschema.Schema
	if t.InputSchema != nil {
		var err error
		compiled, err = compileSchema(t.Name, t.InputSchema)
		if err != nil {
			return oops.Code("TOOL_SCHEMA_INVALID").With("tool", t.Name).Wrap(err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tools[t.Name]; ok {
		return oops.Code("TOOL_DUPLICATE").
			With("tool", t.Name).
			With("owner", existing.owner).
			Errorf("tool %q is already registered", t.Name)
	}
	r.tools[t.Name] = &entry{tool: t, owner: owner, schema: compiled}
	return nil
}

// Unregister implements plugin.ToolRegistry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// RemoveOwner drops every tool a plugin registered.
func (r *Registry) RemoveOwner(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.tools {
		if e.owner == owner {
			delete(r.tools, name)
		}
	}
}

// List implements plugin.ToolRegistry.
func (r *Registry) List() []plugin.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]plugin.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		t := e.tool
		t.Handler = nil
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke implements plugin.ToolRegistry.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, oops.Code("TOOL_UNKNOWN").Errorf("tool %q is not registered", name)
	}

	if e.schema != nil {
		normalized, err := jsonRoundTrip(args)
		if err != nil {
			return nil, oops.Code("TOOL_ARGS_INVALID").With("tool", name).Wrap(err)
		}
		if err := e.schema.Validate(normalized); err != nil {
			return nil, oops.Code("TOOL_ARGS_INVALID").With("tool", name).Wrap(err)
		}
	}
	return e.tool.Handler(ctx, args)
}

func compileSchema(name string, raw map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("wopr://tools/%s/input.schema.json", name)
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// jsonRoundTrip normalizes Go values to JSON types so schema validation sees
// what a wire caller would send.
func jsonRoundTrip(args map[string]any) (any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
