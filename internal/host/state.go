// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package host

import "fmt"

// State is a plugin's position in the lifecycle.
type State int

// Lifecycle states. Transitions only move forward; a deactivated plugin
// must be loaded again to run.
const (
	StateUnloaded State = iota
	StateInitialized
	StateActive
	StateDraining
	StateDeactivated
)

var stateNames = map[State]string{
	StateUnloaded:    "unloaded",
	StateInitialized: "initialized",
	StateActive:      "active",
	StateDraining:    "draining",
	StateDeactivated: "deactivated",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}
