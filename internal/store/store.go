// Package store is the control plane's relational persistence layer:
// Projects, ChatSessions, and Messages, held in a long-lived connection pool
// distinct from the per-operation connections internal/dbprovision opens
// against session databases.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// Store wraps a pooled connection to the control-plane database.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses dsn, applies maxConns if positive, and connects the pool.
func Open(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, err, "parse control plane dsn")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.EngineUnavailable, err, "open control plane pool")
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool. Safe to call once during shutdown.
func (s *Store) Close() {
	s.pool.Close()
}
