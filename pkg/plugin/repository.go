// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package plugin

import (
	"context"
	"encoding/json"
	"fmt"
)

// Repository is the typed facade over a Collection. T marshals to and from
// documents via its json tags; the primary key field must be a string.
type Repository[T any] struct {
	c  Collection
	pk string
}

// NewRepository wraps a collection with typed access. pkField is the json
// name of T's primary key field, matching the table's declared primary key.
func NewRepository[T any](c Collection, pkField string) *Repository[T] {
	return &Repository[T]{c: c, pk: pkField}
}

// Insert persists the record, writing the generated primary key back into it
// when it was empty.
func (r *Repository[T]) Insert(ctx context.Context, rec *T) error {
	doc, err := toDocument(rec)
	if err != nil {
		return err
	}
	stored, err := r.c.Insert(ctx, doc)
	if err != nil {
		return err
	}
	return fromDocument(stored, rec)
}

// InsertMany persists records in order, writing generated keys back.
func (r *Repository[T]) InsertMany(ctx context.Context, recs []*T) error {
	docs := make([]Document, len(recs))
	for i, rec := range recs {
		doc, err := toDocument(rec)
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	stored, err := r.c.InsertMany(ctx, docs)
	if err != nil {
		return err
	}
	for i := range stored {
		if err := fromDocument(stored[i], recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindByID returns the record, or nil (and no error) on a miss.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	doc, err := r.c.FindByID(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	var rec T
	if err := fromDocument(doc, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindMany returns records matching the equality filter.
func (r *Repository[T]) FindMany(ctx context.Context, f Filter) ([]*T, error) {
	docs, err := r.c.FindMany(ctx, f)
	if err != nil {
		return nil, err
	}
	recs := make([]*T, len(docs))
	for i, doc := range docs {
		var rec T
		if err := fromDocument(doc, &rec); err != nil {
			return nil, err
		}
		recs[i] = &rec
	}
	return recs, nil
}

// Update replaces an existing record in full. Returns ErrNotFound when the
// record's primary key is absent from the table.
func (r *Repository[T]) Update(ctx context.Context, rec *T) error {
	doc, err := toDocument(rec)
	if err != nil {
		return err
	}
	id, ok := doc[r.pk].(string)
	if !ok || id == "" {
		return fmt.Errorf("record has no %s primary key", r.pk)
	}
	return r.c.Update(ctx, id, doc)
}

// UpdateMany applies field changes to all matches, returning the count.
func (r *Repository[T]) UpdateMany(ctx context.Context, f Filter, changes Document) (int64, error) {
	return r.c.UpdateMany(ctx, f, changes)
}

// Delete removes a record by id, reporting whether it existed.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	return r.c.Delete(ctx, id)
}

// DeleteMany removes all matches, returning the count.
func (r *Repository[T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	return r.c.DeleteMany(ctx, f)
}

// Query starts a chainable query; Decode turns its results back into T.
func (r *Repository[T]) Query() Query {
	return r.c.Query()
}

// Decode converts query result documents into typed records.
func (r *Repository[T]) Decode(docs []Document) ([]*T, error) {
	recs := make([]*T, len(docs))
	for i, doc := range docs {
		var rec T
		if err := fromDocument(doc, &rec); err != nil {
			return nil, err
		}
		recs[i] = &rec
	}
	return recs, nil
}

func toDocument(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return doc, nil
}

func fromDocument(doc Document, v any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
