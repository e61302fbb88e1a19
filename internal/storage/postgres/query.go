// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package postgres

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/wopr-net/wopr/pkg/plugin"
)

type cond struct {
	field string
	op    plugin.Op
	value any
}

type order struct {
	field string
	desc  bool
}

// query implements plugin.Query. Build errors (unknown field, bad operator)
// are deferred to the terminal call so the chain stays fluent.
type query struct {
	c       *collection
	conds   []cond
	orders  []order
	limit   int
	offset  int
	project []string
}

func (q *query) Where(field string, op plugin.Op, value any) plugin.Query {
	q.conds = append(q.conds, cond{field: field, op: op, value: value})
	return q
}

func (q *query) OrderBy(field string, desc bool) plugin.Query {
	q.orders = append(q.orders, order{field: field, desc: desc})
	return q
}

func (q *query) Limit(n int) plugin.Query {
	q.limit = n
	return q
}

func (q *query) Offset(n int) plugin.Query {
	q.offset = n
	return q
}

func (q *query) Select(fields ...string) plugin.Query {
	q.project = append(q.project, fields...)
	return q
}

// Execute implements plugin.Query.
func (q *query) Execute(ctx context.Context) ([]plugin.Document, error) {
	sql, args, err := q.build("SELECT doc FROM "+q.c.name, true)
	if err != nil {
		return nil, err
	}

	rows, err := q.c.store.querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.c.schema.Name, err)
	}
	defer rows.Close()

	var docs []plugin.Document
	for rows.Next() {
		var doc plugin.Document
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", q.c.schema.Name, err)
		}
		docs = append(docs, q.projected(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", q.c.schema.Name, err)
	}
	return docs, nil
}

// Count implements plugin.Query. Ordering, limit, offset, and projection do
// not apply.
func (q *query) Count(ctx context.Context) (int64, error) {
	sql, args, err := q.build("SELECT count(*) FROM "+q.c.name, false)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := q.c.store.querier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.c.schema.Name, err)
	}
	return n, nil
}

func (q *query) build(prefix string, shaped bool) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString(prefix)

	var args []any
	if len(q.conds) > 0 {
		sb.WriteString(" WHERE ")
		for i, cnd := range q.conds {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			expr, err := q.c.fieldExpr(cnd.field)
			if err != nil {
				return "", nil, err
			}
			clause, clauseArgs, err := condSQL(expr, cnd, len(args)+1)
			if err != nil {
				return "", nil, fmt.Errorf("table %s: %w", q.c.schema.Name, err)
			}
			sb.WriteString(clause)
			args = append(args, clauseArgs...)
		}
	}

	if !shaped {
		return sb.String(), args, nil
	}

	if len(q.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.orders {
			if i > 0 {
				sb.WriteString(", ")
			}
			expr, err := q.c.fieldExpr(o.field)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(expr)
			if o.desc {
				sb.WriteString(" DESC")
			}
		}
	}
	if q.limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.limit)
	}
	if q.offset >= 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.offset)
	}
	return sb.String(), args, nil
}

// condSQL renders one predicate. nextArg is the ordinal of the first
// placeholder it may use.
func condSQL(expr string, c cond, nextArg int) (string, []any, error) {
	switch c.op {
	case plugin.OpEq:
		return fmt.Sprintf("%s = $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpNe:
		return fmt.Sprintf("%s <> $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpGt:
		return fmt.Sprintf("%s > $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpGte:
		return fmt.Sprintf("%s >= $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpLt:
		return fmt.Sprintf("%s < $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpLte:
		return fmt.Sprintf("%s <= $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpLike:
		return fmt.Sprintf("%s LIKE $%d", expr, nextArg), []any{c.value}, nil
	case plugin.OpIn:
		items, err := sliceValues(c.value)
		if err != nil {
			return "", nil, err
		}
		if len(items) == 0 {
			// IN over an empty set matches nothing.
			return "FALSE", nil, nil
		}
		holders := make([]string, len(items))
		for i := range items {
			holders[i] = fmt.Sprintf("$%d", nextArg+i)
		}
		return fmt.Sprintf("%s IN (%s)", expr, strings.Join(holders, ", ")), items, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", c.op)
	}
}

func sliceValues(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("operator %q needs a slice value, got %T", plugin.OpIn, v)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// projected trims a document to the selected fields. The primary key is
// always kept so results stay addressable.
func (q *query) projected(doc plugin.Document) plugin.Document {
	if len(q.project) == 0 {
		return doc
	}
	out := plugin.Document{}
	if v, ok := doc[q.c.schema.PrimaryKey]; ok {
		out[q.c.schema.PrimaryKey] = v
	}
	for _, f := range q.project {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}
