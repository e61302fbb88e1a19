// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

// Package postgres implements the plugin storage contract on PostgreSQL.
// Each plugin's tables live under its namespace as JSONB document tables;
// a host-owned meta table tracks registered schema versions.
package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Querier is the query surface shared by pools and transactions. Both
// pgxpool.Pool and pgx.Tx satisfy it, so repository code runs unchanged
// inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the connection pool surface the store needs. pgxpool.Pool
// satisfies it; pgxmock provides a compatible mock for tests.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store owns the connection pool behind all plugin storage.
type Store struct {
	pool Pool
}

// connectAttempts bounds the startup ping retry.
const connectAttempts = 5

// Connect opens a pool and verifies connectivity, retrying transient
// failures with exponential backoff.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORAGE_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.Warn("database not reachable yet, retrying", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORAGE_PING_FAILED").Wrap(err)
	}

	return &Store{pool: pool}, nil
}

// NewStore wraps an existing pool. Used by tests with pgxmock.
func NewStore(pool Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// querier returns the transaction carried in ctx, or the pool.
func (s *Store) querier(ctx context.Context) Querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return s.pool
}
