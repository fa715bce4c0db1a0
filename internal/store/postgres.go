// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

// Package store provides database connectivity and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection ping retry configuration. A database still coming up (fresh
// container, failover) is normal at process start; a DSN that never answers
// within the window is fatal.
const (
	pingBackoffBase = 250 * time.Millisecond
	pingMaxDuration = 10 * time.Second
)

// NewPool creates a pgx connection pool and verifies connectivity.
// The pool is created once at process start, shared across requests, and
// closed at shutdown by the caller.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxDuration(pingMaxDuration, retry.NewFibonacci(pingBackoffBase))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
