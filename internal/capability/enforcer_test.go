// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcer_SingleSegmentWildcard(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"storage.read.*"}))

	assert.True(t, e.Check("echo", "storage.read.notes"))
	assert.False(t, e.Check("echo", "storage.read.notes.title"), "* must not cross segments")
	assert.False(t, e.Check("echo", "storage.write.notes"))
}

func TestEnforcer_DoubleWildcardCrossesSegments(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"storage.**"}))

	assert.True(t, e.Check("echo", "storage.read.notes"))
	assert.True(t, e.Check("echo", "storage.read.notes.title"))
	assert.False(t, e.Check("echo", "events.emit"))
}

func TestEnforcer_ExactMatch(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"events.message.incoming"}))

	assert.True(t, e.Check("echo", "events.message.incoming"))
	assert.False(t, e.Check("echo", "events.message.outgoing"))
}

func TestEnforcer_DenyByDefault(t *testing.T) {
	e := NewEnforcer()

	assert.False(t, e.Check("unknown", "storage.read.notes"))
	assert.False(t, e.Check("", "storage.read.notes"))

	require.NoError(t, e.SetGrants("echo", []string{"**"}))
	assert.False(t, e.Check("echo", ""), "empty capability always denied")
}

func TestEnforcer_SetGrantsIsAtomic(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"storage.**"}))

	// One bad pattern rejects the whole update; previous grants survive.
	assert.Error(t, e.SetGrants("echo", []string{"events.**", "[unclosed"}))
	assert.True(t, e.Check("echo", "storage.read.notes"))
	assert.False(t, e.Check("echo", "events.emit"))

	assert.Error(t, e.SetGrants("echo", []string{""}))
	assert.Error(t, e.SetGrants("", []string{"storage.**"}))
}

func TestEnforcer_SetGrantsReplaces(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"storage.**"}))
	require.NoError(t, e.SetGrants("echo", []string{"events.**"}))

	assert.False(t, e.Check("echo", "storage.read.notes"))
	assert.True(t, e.Check("echo", "events.emit"))
}

func TestEnforcer_RemoveGrants(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"**"}))

	e.RemoveGrants("echo")
	assert.False(t, e.Check("echo", "storage.read.notes"))
	assert.Nil(t, e.Grants("echo"))

	e.RemoveGrants("never-registered")
}

func TestEnforcer_GrantsReturnsCopy(t *testing.T) {
	e := NewEnforcer()
	require.NoError(t, e.SetGrants("echo", []string{"storage.**", "events.*"}))

	got := e.Grants("echo")
	assert.Equal(t, []string{"storage.**", "events.*"}, got)

	got[0] = "mutated"
	assert.Equal(t, []string{"storage.**", "events.*"}, e.Grants("echo"))
}
