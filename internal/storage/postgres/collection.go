// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/wopr-net/wopr/internal/core"
	"github.com/wopr-net/wopr/pkg/plugin"
)

// collection implements plugin.Collection over one physical document table.
type collection struct {
	store  *Store
	schema plugin.TableSchema
	name   string // physical table name
}

// physicalName maps a namespace and table to the backing table name.
// Namespace hyphens become underscores; both parts are pattern-validated at
// registration, so the result is a safe identifier.
func physicalName(namespace, table string) string {
	return "p_" + strings.ReplaceAll(namespace, "-", "_") + "__" + table
}

// Insert implements plugin.Collection.
func (c *collection) Insert(ctx context.Context, doc plugin.Document) (plugin.Document, error) {
	stored := copyDoc(doc)
	id, _ := stored[c.schema.PrimaryKey].(string)
	if id == "" {
		id = core.NewULID().String()
		stored[c.schema.PrimaryKey] = id
	}

	_, err := c.store.querier(ctx).Exec(ctx,
		`INSERT INTO `+c.name+` (id, doc) VALUES ($1, $2)`, id, stored)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("DUPLICATE_KEY").With("table", c.schema.Name).With("id", id).Wrap(err)
		}
		return nil, fmt.Errorf("insert into %s: %w", c.schema.Name, err)
	}
	return stored, nil
}

// InsertMany implements plugin.Collection. All inserts commit or roll back
// together.
func (c *collection) InsertMany(ctx context.Context, docs []plugin.Document) ([]plugin.Document, error) {
	stored := make([]plugin.Document, len(docs))
	err := c.store.InTransaction(ctx, func(ctx context.Context) error {
		for i, doc := range docs {
			s, err := c.Insert(ctx, doc)
			if err != nil {
				return err
			}
			stored[i] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// FindByID implements plugin.Collection: a miss returns (nil, nil).
func (c *collection) FindByID(ctx context.Context, id string) (plugin.Document, error) {
	var doc plugin.Document
	err := c.store.querier(ctx).QueryRow(ctx,
		`SELECT doc FROM `+c.name+` WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in %s (id=%s): %w", c.schema.Name, id, err)
	}
	return doc, nil
}

// FindMany implements plugin.Collection.
func (c *collection) FindMany(ctx context.Context, f plugin.Filter) ([]plugin.Document, error) {
	where, args, err := c.filterSQL(f, 1)
	if err != nil {
		return nil, err
	}

	rows, err := c.store.querier(ctx).Query(ctx,
		`SELECT doc FROM `+c.name+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.schema.Name, err)
	}
	defer rows.Close()

	var docs []plugin.Document
	for rows.Next() {
		var doc plugin.Document
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c.schema.Name, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", c.schema.Name, err)
	}
	return docs, nil
}

// Update implements plugin.Collection. The primary key cannot be changed.
func (c *collection) Update(ctx context.Context, id string, changes plugin.Document) error {
	merged := copyDoc(changes)
	delete(merged, c.schema.PrimaryKey)

	tag, err := c.store.querier(ctx).Exec(ctx,
		`UPDATE `+c.name+` SET doc = doc || $2, updated_at = now() WHERE id = $1`,
		id, merged)
	if err != nil {
		return fmt.Errorf("update %s (id=%s): %w", c.schema.Name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s (id=%s): %w", c.schema.Name, id, plugin.ErrNotFound)
	}
	return nil
}

// UpdateMany implements plugin.Collection.
func (c *collection) UpdateMany(ctx context.Context, f plugin.Filter, changes plugin.Document) (int64, error) {
	merged := copyDoc(changes)
	delete(merged, c.schema.PrimaryKey)

	where, args, err := c.filterSQL(f, 2)
	if err != nil {
		return 0, err
	}

	tag, err := c.store.querier(ctx).Exec(ctx,
		`UPDATE `+c.name+` SET doc = doc || $1, updated_at = now()`+where,
		append([]any{merged}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.schema.Name, err)
	}
	return tag.RowsAffected(), nil
}

// Delete implements plugin.Collection: reports whether the row existed.
func (c *collection) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := c.store.querier(ctx).Exec(ctx,
		`DELETE FROM `+c.name+` WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete from %s (id=%s): %w", c.schema.Name, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteMany implements plugin.Collection.
func (c *collection) DeleteMany(ctx context.Context, f plugin.Filter) (int64, error) {
	where, args, err := c.filterSQL(f, 1)
	if err != nil {
		return 0, err
	}

	tag, err := c.store.querier(ctx).Exec(ctx, `DELETE FROM `+c.name+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.schema.Name, err)
	}
	return tag.RowsAffected(), nil
}

// Query implements plugin.Collection.
func (c *collection) Query() plugin.Query {
	return &query{c: c, limit: -1, offset: -1}
}

// fieldExpr returns the SQL expression for a declared field, casting by the
// schema's field type so comparisons behave naturally.
func (c *collection) fieldExpr(field string) (string, error) {
	if field == c.schema.PrimaryKey {
		return "id", nil
	}
	f, ok := c.schema.Field(field)
	if !ok {
		return "", fmt.Errorf("table %s has no field %q", c.schema.Name, field)
	}
	expr := "doc->>'" + f.Name + "'"
	switch f.Type {
	case plugin.StorageInteger, plugin.StorageFloat:
		return "(" + expr + ")::numeric", nil
	case plugin.StorageBoolean:
		return "(" + expr + ")::boolean", nil
	case plugin.StorageTimestamp:
		return "(" + expr + ")::timestamptz", nil
	default:
		return expr, nil
	}
}

// filterSQL renders an equality filter as a WHERE clause. startArg is the
// first placeholder ordinal.
func (c *collection) filterSQL(f plugin.Filter, startArg int) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, nil
	}

	// Sorted fields keep generated SQL deterministic.
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conds := make([]string, 0, len(f))
	args := make([]any, 0, len(f))
	for _, field := range fields {
		expr, err := c.fieldExpr(field)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", expr, startArg+len(args)))
		args = append(args, f[field])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func copyDoc(doc plugin.Document) plugin.Document {
	out := make(plugin.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
