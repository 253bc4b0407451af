package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// PoolAdapter adapts *pgxpool.Pool to implement the pgcopy.DBConnection interface.
// Every call acquires and releases its own pooled connection; transactions hold
// theirs until Commit or Rollback.
//
// Thread-Safety: Safe for concurrent use (pgxpool.Pool is thread-safe).
type PoolAdapter struct {
	pool *pgxpool.Pool
}

// NewPoolAdapter creates a new PoolAdapter wrapping the given pool.
func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return &PoolAdapter{pool: pool}
}

// Exec executes a statement without returning any rows.
func (p *PoolAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// QueryRow executes a query that is expected to return at most one row.
func (p *PoolAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgcopy.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Query executes a query that returns rows.
func (p *PoolAdapter) Query(ctx context.Context, sql string, args ...any) (pgcopy.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// Begin starts a read-committed transaction on a dedicated connection.
func (p *PoolAdapter) Begin(ctx context.Context) (pgcopy.Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txAdapter{tx: tx}, nil
}

// Close closes the underlying pool.
func (p *PoolAdapter) Close() {
	p.pool.Close()
}

// txAdapter adapts pgx.Tx to implement pgcopy.Tx.
type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgcopy.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txAdapter) Query(ctx context.Context, sql string, args ...any) (pgcopy.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op after Commit (pgx returns ErrTxClosed, which is swallowed).
func (t *txAdapter) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return err
	}
	return nil
}

// Verify PoolAdapter implements DBConnection at compile time
var _ pgcopy.DBConnection = (*PoolAdapter)(nil)
