package pgcopy

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection abstracts the database operations the load pipeline needs.
// It decouples schema resolution, the marker store and the loader from
// pgx-specific pool types so they can be exercised against fakes.
//
// Thread-Safety: Implementations should follow their underlying connection's
// thread-safety guarantees. Pool-backed implementations are safe for
// concurrent use; every call acquires and releases its own connection.
type DBConnection interface {
	Querier

	// Begin starts a transaction on a dedicated connection.
	// The connection is released when the transaction commits or rolls back.
	Begin(ctx context.Context) (Tx, error)
}

// Querier is the statement surface shared by pools and transactions.
type Querier interface {
	// Exec executes a statement without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Always returns a non-nil Row. Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Tx is a transactional scope. All statements issued through it commit or
// roll back together.
type Tx interface {
	Querier

	Commit(ctx context.Context) error

	// Rollback is safe to call after Commit; it is then a no-op.
	Rollback(ctx context.Context) error
}

// Row represents a single row returned by QueryRow.
type Row interface {
	// Scan reads the values from the row into dest values.
	// Returns an error if no row was found or if the scan fails.
	Scan(dest ...any) error
}

// Rows is a forward-only cursor over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}
