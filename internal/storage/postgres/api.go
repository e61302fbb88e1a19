// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/wopr-net/wopr/pkg/plugin"
)

// API is the per-plugin storage surface. One API is scoped to one namespace;
// the host hands each plugin its own.
type API struct {
	store     *Store
	namespace string

	mu          sync.RWMutex
	collections map[string]*collection
}

// NewAPI returns the storage surface for one plugin namespace.
func NewAPI(store *Store, namespace string) *API {
	return &API{
		store:       store,
		namespace:   namespace,
		collections: make(map[string]*collection),
	}
}

// Register implements plugin.StorageAPI. The whole registration, including
// DDL and the plugin's migration function, runs in one transaction.
func (a *API) Register(ctx context.Context, s plugin.Schema) error {
	if err := s.Validate(); err != nil {
		return oops.Code("SCHEMA_INVALID").With("namespace", s.Namespace).Wrap(err)
	}
	if s.Namespace != a.namespace {
		return oops.Code("SCHEMA_NAMESPACE_MISMATCH").
			With("declared", s.Namespace).
			With("expected", a.namespace).
			Errorf("schema namespace %q does not match plugin namespace %q", s.Namespace, a.namespace)
	}
	next, err := semver.NewVersion(s.Version)
	if err != nil {
		return oops.Code("SCHEMA_INVALID").With("version", s.Version).Wrap(err)
	}

	err = a.store.InTransaction(ctx, func(ctx context.Context) error {
		q := a.store.querier(ctx)

		var current string
		err := q.QueryRow(ctx,
			`SELECT version FROM wopr_plugin_schemas WHERE namespace = $1 FOR UPDATE`,
			s.Namespace).Scan(&current)
		fresh := errors.Is(err, pgx.ErrNoRows)
		if err != nil && !fresh {
			return fmt.Errorf("load schema version for %s: %w", s.Namespace, err)
		}

		if !fresh {
			prev, err := semver.NewVersion(current)
			if err != nil {
				return fmt.Errorf("stored schema version %q for %s: %w", current, s.Namespace, err)
			}
			switch {
			case next.Equal(prev):
				return a.reconcile(ctx, s)
			case next.LessThan(prev):
				return oops.Code("SCHEMA_DOWNGRADE").
					With("namespace", s.Namespace).
					With("stored", current).
					With("declared", s.Version).
					Wrap(plugin.ErrSchemaDowngrade)
			}
			if err := a.reconcile(ctx, s); err != nil {
				return err
			}
			if s.Migrate != nil {
				if err := s.Migrate(ctx, current, s.Version, &handle{store: a.store}); err != nil {
					return oops.Code("SCHEMA_MIGRATE_FAILED").
						With("namespace", s.Namespace).
						With("from", current).
						With("to", s.Version).
						Wrap(err)
				}
			}
			_, err = q.Exec(ctx,
				`UPDATE wopr_plugin_schemas SET version = $2, updated_at = now() WHERE namespace = $1`,
				s.Namespace, s.Version)
			if err != nil {
				return fmt.Errorf("record schema version for %s: %w", s.Namespace, err)
			}
			return nil
		}

		if err := a.reconcile(ctx, s); err != nil {
			return err
		}
		_, err = q.Exec(ctx,
			`INSERT INTO wopr_plugin_schemas (namespace, version) VALUES ($1, $2)`,
			s.Namespace, s.Version)
		if err != nil {
			return fmt.Errorf("record schema version for %s: %w", s.Namespace, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.collections = make(map[string]*collection, len(s.Tables))
	for _, t := range s.Tables {
		a.collections[t.Name] = &collection{
			store:  a.store,
			schema: t,
			name:   physicalName(s.Namespace, t.Name),
		}
	}
	a.mu.Unlock()
	return nil
}

// reconcile brings physical tables in line with the declared schema. All
// statements are idempotent, so re-registering an unchanged version is a
// no-op at the database.
func (a *API) reconcile(ctx context.Context, s plugin.Schema) error {
	q := a.store.querier(ctx)
	for _, t := range s.Tables {
		name := physicalName(s.Namespace, t.Name)
		_, err := q.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+name+` (
	id TEXT PRIMARY KEY,
	doc JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
		if err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		for _, idx := range t.Indexes {
			// idx passed TableSchema.Validate, so it is a safe identifier.
			_, err := q.Exec(ctx, fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s ((doc->>'%s'))`,
				name, idx, name, idx))
			if err != nil {
				return fmt.Errorf("create index on %s.%s: %w", name, idx, err)
			}
		}
	}
	return nil
}

// Collection implements plugin.StorageAPI.
func (a *API) Collection(table string) (plugin.Collection, error) {
	a.mu.RLock()
	c, ok := a.collections[table]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("collection %q in namespace %s: %w", table, a.namespace, plugin.ErrUnknownTable)
	}
	return c, nil
}

// Transaction implements plugin.StorageAPI.
func (a *API) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return a.store.InTransaction(ctx, fn)
}

// Raw implements plugin.StorageAPI. No validation happens here; plugins
// holding a storage surface are trusted with direct SQL.
func (a *API) Raw(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	return rawQuery(ctx, a.store, sql, args...)
}

// handle implements plugin.StorageHandle for migration functions.
type handle struct {
	store *Store
}

func (h *handle) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := h.store.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (h *handle) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	return rawQuery(ctx, h.store, sql, args...)
}

func rawQuery(ctx context.Context, s *Store, sql string, args ...any) ([]map[string]any, error) {
	rows, err := s.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
