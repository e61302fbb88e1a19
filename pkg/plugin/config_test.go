// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFieldValidate(t *testing.T) {
	ok := ConfigField{Name: "token", Type: FieldSecret, Flow: FlowPaste}
	assert.NoError(t, ok.Validate())

	assert.Error(t, ConfigField{Type: FieldString}.Validate(), "name required")
	assert.Error(t, ConfigField{Name: "x", Type: "blob"}.Validate(), "unknown type")
	assert.Error(t, ConfigField{Name: "x", Type: FieldString, Flow: "carrier-pigeon"}.Validate(), "unknown flow")
	assert.Error(t, ConfigField{Name: "x", Type: FieldString, Pattern: "("}.Validate(), "bad pattern")
	assert.Error(t, ConfigField{Name: "x", Type: FieldSelect}.Validate(), "select needs options")

	sel := ConfigField{Name: "mode", Type: FieldSelect, Options: []string{"fast", "slow"}}
	assert.NoError(t, sel.Validate())
}

func TestConfigSchemaField(t *testing.T) {
	s := &ConfigSchema{Fields: []ConfigField{{Name: "token", Type: FieldSecret}}}

	f, ok := s.Field("token")
	assert.True(t, ok)
	assert.Equal(t, FieldSecret, f.Type)

	_, ok = s.Field("absent")
	assert.False(t, ok)

	var nilSchema *ConfigSchema
	_, ok = nilSchema.Field("token")
	assert.False(t, ok)
}
