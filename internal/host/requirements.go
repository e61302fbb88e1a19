// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package host

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// checkRequirements verifies the host-checkable requirements of a manifest
// and returns the unmet ones. Docker images and external services cannot be
// probed from here; they are surfaced to operators via the manifest, not
// checked at load.
func checkRequirements(r plugin.Requirements, cfg plugin.ConfigAPI) []string {
	var unmet []string

	for _, bin := range r.Binaries {
		if _, err := exec.LookPath(bin); err != nil {
			unmet = append(unmet, fmt.Sprintf("binary %q not on PATH", bin))
		}
	}
	for _, env := range r.EnvVars {
		if _, ok := os.LookupEnv(env); !ok {
			unmet = append(unmet, fmt.Sprintf("environment variable %q not set", env))
		}
	}
	if len(r.OS) > 0 && !slices.Contains(r.OS, runtime.GOOS) {
		unmet = append(unmet, fmt.Sprintf("os %q not in %v", runtime.GOOS, r.OS))
	}
	for _, key := range r.ConfigKeys {
		if _, ok := cfg.Get(key); !ok {
			unmet = append(unmet, fmt.Sprintf("config key %q not set", key))
		}
	}
	return unmet
}
