// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"fmt"
	"regexp"
)

// FieldType is the value type of a config field.
type FieldType string

// Config field types.
const (
	FieldString  FieldType = "string"
	FieldSecret  FieldType = "secret"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
)

// SetupFlow describes how a field's value is obtained during setup.
type SetupFlow string

// Setup flows.
const (
	FlowPaste       SetupFlow = "paste"
	FlowOAuth       SetupFlow = "oauth"
	FlowQR          SetupFlow = "qr"
	FlowInteractive SetupFlow = "interactive"
	FlowNone        SetupFlow = "none"
)

// ConfigField declaratively describes one config value. It drives dynamic
// form rendering; validation of actual values is the host's job, not the
// field's.
type ConfigField struct {
	Name        string    `yaml:"name" json:"name"`
	Label       string    `yaml:"label,omitempty" json:"label,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Type        FieldType `yaml:"type" json:"type"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any       `yaml:"default,omitempty" json:"default,omitempty"`
	// Pattern is a regular expression string or select values must match.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	// Options enumerates allowed values for select fields.
	Options []string  `yaml:"options,omitempty" json:"options,omitempty"`
	Flow    SetupFlow `yaml:"flow,omitempty" json:"flow,omitempty"`
}

// Validate checks the field declaration itself (not a value).
func (f ConfigField) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("config field has no name")
	}
	switch f.Type {
	case FieldString, FieldSecret, FieldNumber, FieldBoolean, FieldSelect:
	default:
		return fmt.Errorf("config field %q: unknown type %q", f.Name, f.Type)
	}
	switch f.Flow {
	case "", FlowPaste, FlowOAuth, FlowQR, FlowInteractive, FlowNone:
	default:
		return fmt.Errorf("config field %q: unknown flow %q", f.Name, f.Flow)
	}
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("config field %q: invalid pattern: %w", f.Name, err)
		}
	}
	if f.Type == FieldSelect && len(f.Options) == 0 {
		return fmt.Errorf("config field %q: select fields need options", f.Name)
	}
	return nil
}

// ConfigSchema is the full declarative config form for a plugin.
type ConfigSchema struct {
	Fields []ConfigField `yaml:"fields" json:"fields"`
}

// Field returns the declaration for a field name, if present.
func (s *ConfigSchema) Field(name string) (ConfigField, bool) {
	if s == nil {
		return ConfigField{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ConfigField{}, false
}

// ConfigAPI is the typed get/set surface over a plugin's config namespace.
// Set validates values against the plugin's ConfigSchema before persisting.
type ConfigAPI interface {
	// Schema returns the plugin's declared config schema, or nil.
	Schema() *ConfigSchema

	// Get returns a config value and whether it was set.
	Get(key string) (any, bool)

	// GetString returns a config value as a string, or "" if unset.
	GetString(key string) string

	// Set validates and stores a config value.
	Set(ctx context.Context, key string, value any) error

	// All returns a copy of the plugin's config values.
	All() map[string]any
}
