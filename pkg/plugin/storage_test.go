// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validTable() TableSchema {
	return TableSchema{
		Name: "messages",
		Fields: []StorageField{
			{Name: "id", Type: StorageString},
			{Name: "count", Type: StorageInteger},
		},
		PrimaryKey: "id",
		Indexes:    []string{"count"},
	}
}

func TestTableSchemaValidate_OK(t *testing.T) {
	assert.NoError(t, validTable().Validate())
}

func TestTableSchemaValidate_RejectsUnsafeIdentifiers(t *testing.T) {
	tb := validTable()
	tb.Name = "messages; DROP TABLE users"
	assert.Error(t, tb.Validate())

	tb = validTable()
	tb.Fields[0].Name = "id'--"
	assert.Error(t, tb.Validate())

	tb = validTable()
	tb.Name = "Messages"
	assert.Error(t, tb.Validate(), "uppercase identifiers rejected")
}

func TestTableSchemaValidate_PrimaryKeyMustBeDeclared(t *testing.T) {
	tb := validTable()
	tb.PrimaryKey = "missing"
	assert.ErrorContains(t, tb.Validate(), "primary key")
}

func TestTableSchemaValidate_IndexMustBeDeclared(t *testing.T) {
	tb := validTable()
	tb.Indexes = []string{"missing"}
	assert.ErrorContains(t, tb.Validate(), "index")
}

func TestTableSchemaValidate_UnknownFieldType(t *testing.T) {
	tb := validTable()
	tb.Fields[1].Type = "decimal"
	assert.ErrorContains(t, tb.Validate(), "unknown type")
}

func TestSchemaValidate(t *testing.T) {
	s := Schema{Namespace: "echo", Version: "1.0.0", Tables: []TableSchema{validTable()}}
	assert.NoError(t, s.Validate())

	s.Version = ""
	assert.ErrorContains(t, s.Validate(), "version")

	s = Schema{Namespace: "Echo!", Version: "1.0.0", Tables: []TableSchema{validTable()}}
	assert.ErrorContains(t, s.Validate(), "namespace")

	s = Schema{Namespace: "echo", Version: "1.0.0"}
	assert.ErrorContains(t, s.Validate(), "no tables")

	s = Schema{Namespace: "echo", Version: "1.0.0", Tables: []TableSchema{validTable(), validTable()}}
	assert.ErrorContains(t, s.Validate(), "duplicate table")
}
