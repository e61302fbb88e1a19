// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-net/wopr/pkg/errutil"
	"github.com/wopr-net/wopr/pkg/plugin"
)

func testSchema() *plugin.ConfigSchema {
	return &plugin.ConfigSchema{
		Fields: []plugin.ConfigField{
			{Name: "greeting", Type: plugin.FieldString, Default: "hello"},
			{Name: "api_key", Type: plugin.FieldSecret, Required: true},
			{Name: "max_items", Type: plugin.FieldNumber, Default: 10},
			{Name: "enabled", Type: plugin.FieldBoolean, Default: true},
			{Name: "mode", Type: plugin.FieldSelect, Options: []string{"fast", "safe"}},
			{Name: "slug", Type: plugin.FieldString, Pattern: "^[a-z]+$"},
		},
	}
}

func TestConfig_HydrateLayersStoredOverDefaults(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	require.NoError(t, backend.Save(ctx, "echo", "greeting", "howdy"))

	c := New("echo", testSchema(), backend)
	require.NoError(t, c.Hydrate(ctx))

	assert.Equal(t, "howdy", c.GetString("greeting"), "stored value wins over default")

	v, ok := c.Get("max_items")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	_, ok = c.Get("api_key")
	assert.False(t, ok, "required field without default stays unset")
}

func TestConfig_SetPersistsAndCaches(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	c := New("echo", testSchema(), backend)
	require.NoError(t, c.Hydrate(ctx))

	require.NoError(t, c.Set(ctx, "greeting", "hi"))
	assert.Equal(t, "hi", c.GetString("greeting"))

	stored, err := backend.Load(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, "hi", stored["greeting"])
}

func TestConfig_SetRejectsUnknownKey(t *testing.T) {
	c := New("echo", testSchema(), NewMemory())

	err := c.Set(context.Background(), "no_such_key", "x")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_UNKNOWN_KEY")
}

func TestConfig_SetValidatesTypes(t *testing.T) {
	ctx := context.Background()
	c := New("echo", testSchema(), NewMemory())

	tests := []struct {
		name  string
		key   string
		value any
		ok    bool
	}{
		{"string ok", "greeting", "hi", true},
		{"string wrong type", "greeting", 42, false},
		{"number int", "max_items", 5, true},
		{"number float", "max_items", 2.5, true},
		{"number wrong type", "max_items", "5", false},
		{"boolean ok", "enabled", false, true},
		{"boolean wrong type", "enabled", "true", false},
		{"select valid option", "mode", "fast", true},
		{"select invalid option", "mode", "reckless", false},
		{"select wrong type", "mode", 1, false},
		{"pattern match", "slug", "abc", true},
		{"pattern mismatch", "slug", "ABC-123", false},
		{"secret ok", "api_key", "s3cret", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Set(ctx, tt.key, tt.value)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID_VALUE")
		})
	}
}

func TestConfig_NilSchemaSkipsValidation(t *testing.T) {
	ctx := context.Background()
	c := New("echo", nil, NewMemory())
	require.NoError(t, c.Hydrate(ctx))

	require.NoError(t, c.Set(ctx, "anything", 42))
	v, ok := c.Get("anything")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Nil(t, c.Schema())
	assert.Nil(t, c.MissingRequired())
}

func TestConfig_MissingRequired(t *testing.T) {
	ctx := context.Background()
	c := New("echo", testSchema(), NewMemory())
	require.NoError(t, c.Hydrate(ctx))

	assert.Equal(t, []string{"api_key"}, c.MissingRequired())

	require.NoError(t, c.Set(ctx, "api_key", "s3cret"))
	assert.Empty(t, c.MissingRequired())
}

func TestConfig_AllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := New("echo", testSchema(), NewMemory())
	require.NoError(t, c.Hydrate(ctx))

	all := c.All()
	all["greeting"] = "mutated"
	assert.Equal(t, "hello", c.GetString("greeting"))
}

func TestConfig_GetStringNonStringIsEmpty(t *testing.T) {
	ctx := context.Background()
	c := New("echo", testSchema(), NewMemory())
	require.NoError(t, c.Hydrate(ctx))

	assert.Empty(t, c.GetString("max_items"))
	assert.Empty(t, c.GetString("never_set"))
}
