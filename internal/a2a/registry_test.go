// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package a2a

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wopr-net/wopr/pkg/errutil"
	"github.com/wopr-net/wopr/pkg/plugin"
)

func echoTool() plugin.Tool {
	return plugin.Tool{
		Name:        "echo",
		Description: "Echoes the given text back.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []any{"text"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func TestRegistry_InvokeValidArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	out, err := r.Invoke(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestRegistry_InvokeRejectsBadArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing required", map[string]any{}},
		{"nil args", nil},
		{"wrong type", map[string]any{"text": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Invoke(context.Background(), "echo", tt.args)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "TOOL_ARGS_INVALID")
		})
	}
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOOL_UNKNOWN")
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterOwned("echo", echoTool()))

	err := r.RegisterOwned("other", echoTool())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOOL_DUPLICATE")
}

func TestRegistry_InvalidToolRejected(t *testing.T) {
	r := NewRegistry()

	err := r.Register(plugin.Tool{Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOOL_INVALID")

	err = r.Register(plugin.Tool{Name: "no-handler"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOOL_INVALID")
}

func TestRegistry_BadSchemaRejected(t *testing.T) {
	r := NewRegistry()

	tool := echoTool()
	tool.InputSchema = map[string]any{"type": 42}
	err := r.Register(tool)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOOL_SCHEMA_INVALID")
}

func TestRegistry_NoSchemaSkipsValidation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(plugin.Tool{
		Name: "freeform",
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return len(args), nil
		},
	}))

	out, err := r.Invoke(context.Background(), "freeform", map[string]any{"anything": true})
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestRegistry_ListOmitsHandlers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))
	require.NoError(t, r.Register(plugin.Tool{
		Name:    "beep",
		Handler: func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))

	tools := r.List()
	require.Len(t, tools, 2)
	assert.Equal(t, "beep", tools[0].Name)
	assert.Equal(t, "echo", tools[1].Name)
	for _, tool := range tools {
		assert.Nil(t, tool.Handler)
	}
}

func TestRegistry_RemoveOwner(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterOwned("echo", echoTool()))
	require.NoError(t, r.RegisterOwned("other", plugin.Tool{
		Name:    "beep",
		Handler: func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))

	r.RemoveOwner("echo")

	tools := r.List()
	require.Len(t, tools, 1)
	assert.Equal(t, "beep", tools[0].Name)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool()))

	r.Unregister("echo")
	assert.Empty(t, r.List())

	r.Unregister("never-registered")
}
