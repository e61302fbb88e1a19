// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package config implements the per-plugin config surface. Values are
// validated against the plugin's declared schema on write and cached in
// memory; a Backend persists them.
package config

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/samber/oops"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// Backend persists plugin config values. The postgres store provides one;
// tests use Memory.
type Backend interface {
	Load(ctx context.Context, pluginName string) (map[string]any, error)
	Save(ctx context.Context, pluginName, key string, value any) error
}

// Memory is an in-process Backend.
type Memory struct {
	mu     sync.Mutex
	values map[string]map[string]any
}

// NewMemory returns an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]map[string]any)}
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, pluginName string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.values[pluginName]))
	for k, v := range m.values[pluginName] {
		out[k] = v
	}
	return out, nil
}

// Save implements Backend.
func (m *Memory) Save(_ context.Context, pluginName, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[pluginName] == nil {
		m.values[pluginName] = make(map[string]any)
	}
	m.values[pluginName][key] = value
	return nil
}

// Config implements plugin.ConfigAPI for one plugin.
type Config struct {
	pluginName string
	schema     *plugin.ConfigSchema
	backend    Backend

	mu     sync.RWMutex
	values map[string]any
}

// New returns the config surface for a plugin. schema may be nil when the
// plugin declares none; Set is then unvalidated.
func New(pluginName string, schema *plugin.ConfigSchema, backend Backend) *Config {
	return &Config{
		pluginName: pluginName,
		schema:     schema,
		backend:    backend,
		values:     make(map[string]any),
	}
}

// Hydrate loads persisted values, layering them over schema defaults.
func (c *Config) Hydrate(ctx context.Context) error {
	stored, err := c.backend.Load(ctx, c.pluginName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]any)
	if c.schema != nil {
		for _, f := range c.schema.Fields {
			if f.Default != nil {
				c.values[f.Name] = f.Default
			}
		}
	}
	for k, v := range stored {
		c.values[k] = v
	}
	return nil
}

// Schema implements plugin.ConfigAPI.
func (c *Config) Schema() *plugin.ConfigSchema {
	return c.schema
}

// Get implements plugin.ConfigAPI.
func (c *Config) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString implements plugin.ConfigAPI.
func (c *Config) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set implements plugin.ConfigAPI: validates against the schema, persists,
// then updates the cache.
func (c *Config) Set(ctx context.Context, key string, value any) error {
	if c.schema != nil {
		field, ok := c.schema.Field(key)
		if !ok {
			return oops.Code("CONFIG_UNKNOWN_KEY").
				With("plugin", c.pluginName).
				Errorf("config key %q is not declared", key)
		}
		if err := checkValue(field, value); err != nil {
			return oops.Code("CONFIG_INVALID_VALUE").
				With("plugin", c.pluginName).
				With("key", key).
				Wrap(err)
		}
	}
	if err := c.backend.Save(ctx, c.pluginName, key, value); err != nil {
		return err
	}

	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
	return nil
}

// All implements plugin.ConfigAPI.
func (c *Config) All() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// MissingRequired reports declared required fields with no value. The host
// checks this before activation.
func (c *Config) MissingRequired() []string {
	if c.schema == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []string
	for _, f := range c.schema.Fields {
		if f.Required {
			if _, ok := c.values[f.Name]; !ok {
				missing = append(missing, f.Name)
			}
		}
	}
	return missing
}

// checkValue validates one value against a field declaration.
func checkValue(f plugin.ConfigField, value any) error {
	switch f.Type {
	case plugin.FieldString, plugin.FieldSecret:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		return checkPattern(f, s)
	case plugin.FieldNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return nil
		}
		return fmt.Errorf("expected number, got %T", value)
	case plugin.FieldBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
		return nil
	case plugin.FieldSelect:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if !slices.Contains(f.Options, s) {
			return fmt.Errorf("value %q is not one of %v", s, f.Options)
		}
		return nil
	default:
		return fmt.Errorf("unknown field type %q", f.Type)
	}
}

func checkPattern(f plugin.ConfigField, s string) error {
	if f.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		return fmt.Errorf("field pattern: %w", err)
	}
	if !re.MatchString(s) {
		return fmt.Errorf("value does not match pattern %s", f.Pattern)
	}
	return nil
}
