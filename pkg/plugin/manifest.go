// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ShutdownBehavior controls how the host tears a plugin down.
type ShutdownBehavior string

// Shutdown behaviors supported by the host.
const (
	// ShutdownGraceful waits for OnDeactivate and Shutdown to resolve,
	// bounded by the shutdown timeout.
	ShutdownGraceful ShutdownBehavior = "graceful"
	// ShutdownImmediate tears the plugin context down without waiting for
	// callbacks to resolve.
	ShutdownImmediate ShutdownBehavior = "immediate"
	// ShutdownDrain refuses new work and lets in-flight work finish
	// (OnDrain) before deactivating.
	ShutdownDrain ShutdownBehavior = "drain"
)

// Defaults for the lifecycle policy.
const (
	DefaultHealthInterval  = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Manifest is the static, declarative description of a plugin, normally
// written as a plugin.yaml file next to the plugin source.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Capabilities are the capability patterns the plugin is granted.
	// Non-empty for a valid manifest. Patterns use glob matching with '.'
	// as the segment separator ("storage.**", "channel.discord.*").
	Capabilities []string `yaml:"capabilities" json:"capabilities"`

	Provides     Provides        `yaml:"provides,omitempty" json:"provides,omitempty"`
	Requirements Requirements    `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Install      []InstallMethod `yaml:"install,omitempty" json:"install,omitempty"`
	Setup        []SetupStep     `yaml:"setup,omitempty" json:"setup,omitempty"`
	Lifecycle    LifecyclePolicy `yaml:"lifecycle,omitempty" json:"lifecycle,omitempty"`
}

// Provides declares what the plugin offers to the rest of the system.
type Provides struct {
	// Capabilities lists providers the host auto-registers around the
	// plugin's lifecycle. (Type, ID) pairs must be unique within a plugin.
	Capabilities []CapabilityDecl `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// CapabilityDecl declares one provider of an abstract capability role.
type CapabilityDecl struct {
	// Type is the capability role, e.g. "tts".
	Type string `yaml:"type" json:"type"`
	// ID distinguishes providers of the same role.
	ID string `yaml:"id" json:"id"`
	// Priority orders providers of the same role; lower wins. Default 100.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Requirements lists what must be present on the host for the plugin to run.
// The host checks these at load time and reports unmet requirements; it does
// not install anything.
type Requirements struct {
	Binaries     []string `yaml:"binaries,omitempty" json:"binaries,omitempty"`
	EnvVars      []string `yaml:"env-vars,omitempty" json:"env-vars,omitempty"`
	DockerImages []string `yaml:"docker-images,omitempty" json:"docker-images,omitempty"`
	ConfigKeys   []string `yaml:"config-keys,omitempty" json:"config-keys,omitempty"`
	OS           []string `yaml:"os,omitempty" json:"os,omitempty"`
	Network      bool     `yaml:"network,omitempty" json:"network,omitempty"`
	Storage      bool     `yaml:"storage,omitempty" json:"storage,omitempty"`
	Services     []string `yaml:"services,omitempty" json:"services,omitempty"`
}

// InstallMethodKind identifies how an install method is executed.
type InstallMethodKind string

// Install method kinds.
const (
	InstallPackageManager InstallMethodKind = "package-manager"
	InstallScript         InstallMethodKind = "script"
	InstallManual         InstallMethodKind = "manual"
)

// InstallMethod describes one way to install the plugin's external
// dependencies. Methods are listed in preference order.
type InstallMethod struct {
	Kind     InstallMethodKind `yaml:"kind" json:"kind"`
	Platform string            `yaml:"platform,omitempty" json:"platform,omitempty"`
	Commands []string          `yaml:"commands,omitempty" json:"commands,omitempty"`
	URL      string            `yaml:"url,omitempty" json:"url,omitempty"`
}

// SetupStep is one step of the interactive setup wizard.
type SetupStep struct {
	ID          string        `yaml:"id" json:"id"`
	Title       string        `yaml:"title" json:"title"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []ConfigField `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// LifecyclePolicy controls health checking and shutdown.
type LifecyclePolicy struct {
	// HealthEndpoint is an optional URL or path polled for liveness.
	HealthEndpoint string `yaml:"health-endpoint,omitempty" json:"health-endpoint,omitempty"`
	// HealthIntervalMs is the liveness poll interval. Zero means the
	// default of 30s.
	HealthIntervalMs int64 `yaml:"health-interval-ms,omitempty" json:"health-interval-ms,omitempty"`
	// HotReload marks the plugin as safe to reload in place.
	HotReload bool `yaml:"hot-reload,omitempty" json:"hot-reload,omitempty"`
	// ShutdownBehavior is graceful, immediate, or drain. Empty means
	// graceful.
	ShutdownBehavior ShutdownBehavior `yaml:"shutdown-behavior,omitempty" json:"shutdown-behavior,omitempty"`
	// ShutdownTimeoutMs bounds how long the host waits for drain and
	// shutdown callbacks. Zero means the default of 10s.
	ShutdownTimeoutMs int64 `yaml:"shutdown-timeout-ms,omitempty" json:"shutdown-timeout-ms,omitempty"`
}

// HealthInterval returns the liveness poll interval, applying the default.
func (l LifecyclePolicy) HealthInterval() time.Duration {
	if l.HealthIntervalMs <= 0 {
		return DefaultHealthInterval
	}
	return time.Duration(l.HealthIntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the shutdown callback bound, applying the default.
func (l LifecyclePolicy) ShutdownTimeout() time.Duration {
	if l.ShutdownTimeoutMs <= 0 {
		return DefaultShutdownTimeout
	}
	return time.Duration(l.ShutdownTimeoutMs) * time.Millisecond
}

// Behavior returns the shutdown behavior, applying the graceful default.
func (l LifecyclePolicy) Behavior() ShutdownBehavior {
	if l.ShutdownBehavior == "" {
		return ShutdownGraceful
	}
	return l.ShutdownBehavior
}

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", m.Version, err)
	}

	if len(m.Capabilities) == 0 {
		return fmt.Errorf("capabilities must be non-empty")
	}
	for i, c := range m.Capabilities {
		if c == "" {
			return fmt.Errorf("capability %d is empty", i)
		}
	}

	seen := make(map[string]bool, len(m.Provides.Capabilities))
	for _, decl := range m.Provides.Capabilities {
		if decl.Type == "" {
			return fmt.Errorf("provided capability has empty type")
		}
		if decl.ID == "" {
			return fmt.Errorf("provided capability %q has empty id", decl.Type)
		}
		key := decl.Type + "/" + decl.ID
		if seen[key] {
			return fmt.Errorf("duplicate provided capability (%s, %s)", decl.Type, decl.ID)
		}
		seen[key] = true
	}

	for i, im := range m.Install {
		switch im.Kind {
		case InstallPackageManager, InstallScript, InstallManual:
		default:
			return fmt.Errorf("install method %d: kind must be 'package-manager', 'script', or 'manual', got %q", i, im.Kind)
		}
	}

	for i, step := range m.Setup {
		if step.ID == "" {
			return fmt.Errorf("setup step %d: id is required", i)
		}
		for _, f := range step.Fields {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("setup step %q: %w", step.ID, err)
			}
		}
	}

	switch m.Lifecycle.ShutdownBehavior {
	case "", ShutdownGraceful, ShutdownImmediate, ShutdownDrain:
	default:
		return fmt.Errorf("shutdown-behavior must be 'graceful', 'immediate', or 'drain', got %q", m.Lifecycle.ShutdownBehavior)
	}

	return nil
}
