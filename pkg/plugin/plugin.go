// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"fmt"
	"io"
	"regexp"
)

// Plugin is the live object a host loads. All lifecycle callbacks except
// Init are optional; the host checks for nil before invoking (capability
// detection by presence, not by type assertion).
//
// Lifecycle ordering: Init precedes any OnActivate. On a graceful or drain
// shutdown, OnDrain (if set) completes - or is force-timed-out - strictly
// before OnDeactivate and Shutdown begin. OnDeactivate precedes Shutdown
// when both are set.
type Plugin struct {
	// Name identifies the plugin. Must match the manifest name if a
	// manifest is present.
	Name string

	// Version is the plugin version, semver.
	Version string

	// Manifest is the static metadata for the plugin. Optional; plugins
	// without a manifest get default lifecycle policy and no declared
	// capabilities.
	Manifest *Manifest

	// Init is called once at load time with the runtime context. A non-nil
	// error is fatal to the load: the host must not activate the plugin.
	// The context handed here stays valid until OnDeactivate; plugins must
	// not retain it past that point.
	Init func(ctx context.Context, pc Context) error

	// Shutdown is called last on teardown.
	Shutdown func(ctx context.Context) error

	// OnActivate is called after Init. If absent, the plugin is considered
	// active immediately after Init returns.
	OnActivate func(ctx context.Context) error

	// OnDeactivate is called before Shutdown on teardown.
	OnDeactivate func(ctx context.Context) error

	// OnDrain is called when the host stops routing new work to the plugin
	// and waits for in-flight work to finish. Only invoked when the
	// manifest declares drain shutdown behavior.
	OnDrain func(ctx context.Context) error

	// Health is an optional liveness probe, polled at the manifest's
	// health interval.
	Health func(ctx context.Context) error

	// Commands are CLI commands the plugin contributes to the host binary.
	Commands []CLICommand
}

// CLICommand is a CLI command contributed by a plugin, surfaced by the host
// under its own name.
type CLICommand struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string, out io.Writer) error
}

// namePattern validates plugin names: must start with a lowercase letter,
// followed by lowercase letters, digits, or hyphens. Cannot end with a
// hyphen.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// Validate checks that the plugin is loadable.
func (p *Plugin) Validate() error {
	if p.Name == "" || !namePattern.MatchString(p.Name) {
		return fmt.Errorf("plugin name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", p.Name)
	}
	if len(p.Name) > maxNameLength {
		return fmt.Errorf("plugin name must be %d characters or less, got %d", maxNameLength, len(p.Name))
	}
	if p.Version == "" {
		return fmt.Errorf("plugin %s: version is required", p.Name)
	}
	if p.Init == nil {
		return fmt.Errorf("plugin %s: Init is required", p.Name)
	}
	if p.Manifest != nil && p.Manifest.Name != p.Name {
		return fmt.Errorf("plugin %s: manifest name %q does not match", p.Name, p.Manifest.Name)
	}
	for i, c := range p.Commands {
		if c.Name == "" {
			return fmt.Errorf("plugin %s: command %d has no name", p.Name, i)
		}
		if c.Run == nil {
			return fmt.Errorf("plugin %s: command %q has no Run function", p.Name, c.Name)
		}
	}
	return nil
}
