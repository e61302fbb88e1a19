// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package plugin defines the contract between the WOPR host runtime and
// third-party plugins: the plugin descriptor, the manifest, the runtime
// context handed to plugins at initialization, the closed event map, the
// hook and channel surfaces, and the storage API.
//
// Plugin authors import only this package. The host runtime (internal/host
// and friends) implements every interface declared here.
package plugin
