// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Storage contract errors.
var (
	// ErrNotFound is returned by Update and targeted operations that
	// require an existing row. Lookups (FindByID) return absence, not this
	// error.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownTable is returned when a table was not declared in the
	// plugin's registered schema.
	ErrUnknownTable = errors.New("table not declared in schema")

	// ErrSchemaDowngrade is returned when a plugin registers a schema
	// version lower than the one already stored.
	ErrSchemaDowngrade = errors.New("schema version downgrade")
)

// StorageFieldType is the declared type of a table field.
type StorageFieldType string

// Storage field types.
const (
	StorageString    StorageFieldType = "string"
	StorageInteger   StorageFieldType = "integer"
	StorageFloat     StorageFieldType = "float"
	StorageBoolean   StorageFieldType = "boolean"
	StorageTimestamp StorageFieldType = "timestamp"
	StorageJSON      StorageFieldType = "json"
)

// StorageField declares one field of a table.
type StorageField struct {
	Name     string           `yaml:"name" json:"name"`
	Type     StorageFieldType `yaml:"type" json:"type"`
	Nullable bool             `yaml:"nullable,omitempty" json:"nullable,omitempty"`
}

// TableSchema declares one persistent table.
type TableSchema struct {
	Name       string         `yaml:"name" json:"name"`
	Fields     []StorageField `yaml:"fields" json:"fields"`
	PrimaryKey string         `yaml:"primary-key" json:"primary-key"`
	Indexes    []string       `yaml:"indexes,omitempty" json:"indexes,omitempty"`
}

// Field returns the declaration for a field name, if present.
func (t TableSchema) Field(name string) (StorageField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StorageField{}, false
}

// identPattern restricts table and field names to safe SQL identifiers.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks table constraints. Table and field names must be
// lowercase identifiers (letters, digits, underscores) so the host can use
// them in generated SQL.
func (t TableSchema) Validate() error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("table name %q must match %s", t.Name, identPattern)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("table %q has no fields", t.Name)
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if !identPattern.MatchString(f.Name) {
			return fmt.Errorf("table %q: field name %q must match %s", t.Name, f.Name, identPattern)
		}
		if seen[f.Name] {
			return fmt.Errorf("table %q: duplicate field %q", t.Name, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case StorageString, StorageInteger, StorageFloat, StorageBoolean, StorageTimestamp, StorageJSON:
		default:
			return fmt.Errorf("table %q: field %q has unknown type %q", t.Name, f.Name, f.Type)
		}
	}
	if t.PrimaryKey == "" {
		return fmt.Errorf("table %q has no primary key", t.Name)
	}
	if !seen[t.PrimaryKey] {
		return fmt.Errorf("table %q: primary key %q is not a declared field", t.Name, t.PrimaryKey)
	}
	for _, idx := range t.Indexes {
		if !seen[idx] {
			return fmt.Errorf("table %q: index %q is not a declared field", t.Name, idx)
		}
	}
	return nil
}

// MigrateFunc is invoked by the host when a schema version bump is
// registered, after the host reconciles DDL. Repository operations inside
// run against the already-migrated layout.
type MigrateFunc func(ctx context.Context, from, to string, h StorageHandle) error

// StorageHandle is the low-level surface handed to migration functions.
type StorageHandle interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
}

// Schema is a plugin's declared persistent shape, registered under its
// namespace.
type Schema struct {
	// Namespace isolates the plugin's tables; normally the plugin name.
	Namespace string `yaml:"namespace" json:"namespace"`
	// Version is semver. Re-registering the same version is a no-op; a
	// bump triggers migration; a downgrade is an error.
	Version string        `yaml:"version" json:"version"`
	Tables  []TableSchema `yaml:"tables" json:"tables"`
	// Migrate is an optional plugin-supplied migration, run on version
	// bumps with (fromVersion, toVersion, handle).
	Migrate MigrateFunc `yaml:"-" json:"-"`
}

// Validate checks schema constraints.
func (s Schema) Validate() error {
	if s.Namespace == "" || !namePattern.MatchString(s.Namespace) {
		return fmt.Errorf("schema namespace %q must start with a-z, contain only a-z, 0-9, hyphens", s.Namespace)
	}
	if s.Version == "" {
		return fmt.Errorf("schema version is required")
	}
	if len(s.Tables) == 0 {
		return fmt.Errorf("schema declares no tables")
	}
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Document is one stored record, keyed by field name.
type Document = map[string]any

// Filter is an equality filter over field names. Use Query for richer
// predicates.
type Filter map[string]any

// Op is a comparison operator for query predicates.
type Op string

// Query operators.
const (
	OpEq   Op = "eq"
	OpNe   Op = "ne"
	OpGt   Op = "gt"
	OpGte  Op = "gte"
	OpLt   Op = "lt"
	OpLte  Op = "lte"
	OpIn   Op = "in"
	OpLike Op = "like"
)

// Query is a chainable builder over one table. Builders are single-use:
// terminal calls consume the composed filter, ordering, limit, offset, and
// projection.
type Query interface {
	Where(field string, op Op, value any) Query
	OrderBy(field string, desc bool) Query
	Limit(n int) Query
	Offset(n int) Query
	Select(fields ...string) Query

	Execute(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int64, error)
}

// Collection is the untyped CRUD facade over one declared table. The typed
// Repository wraps it.
type Collection interface {
	// Insert persists a document, assigning a generated primary key when
	// the key field is absent or empty. Returns the stored document.
	Insert(ctx context.Context, doc Document) (Document, error)

	// InsertMany persists documents in order, assigning keys as Insert
	// does.
	InsertMany(ctx context.Context, docs []Document) ([]Document, error)

	// FindByID returns the document, or nil (and no error) on a miss.
	FindByID(ctx context.Context, id string) (Document, error)

	// FindMany returns documents matching the equality filter. A nil
	// filter matches everything.
	FindMany(ctx context.Context, f Filter) ([]Document, error)

	// Update applies changes to an existing document. Returns ErrNotFound
	// when the id is absent.
	Update(ctx context.Context, id string, changes Document) error

	// UpdateMany applies changes to all matches and returns the affected
	// count.
	UpdateMany(ctx context.Context, f Filter, changes Document) (int64, error)

	// Delete removes a document, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteMany removes all matches and returns the affected count.
	DeleteMany(ctx context.Context, f Filter) (int64, error)

	// Query starts a chainable query over the table.
	Query() Query
}

// StorageAPI is the per-plugin storage surface. All operations respect a
// transaction carried in ctx by Transaction.
type StorageAPI interface {
	// Register declares the plugin's schema. Idempotent per
	// namespace/version; a semver bump migrates, a downgrade fails with
	// ErrSchemaDowngrade.
	Register(ctx context.Context, s Schema) error

	// Collection returns the facade for a declared table, or
	// ErrUnknownTable.
	Collection(table string) (Collection, error)

	// Transaction runs fn atomically: every repository operation inside
	// either commits together or rolls back together. Nested calls join
	// the enclosing transaction rather than opening a new scope.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Raw executes SQL verbatim. This is a trust boundary: the host
	// performs no validation, and plugins are trusted with it.
	Raw(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
}
