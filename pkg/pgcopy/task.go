package pgcopy

import "context"

// CopyTask is the capability a concrete load task implements.
// ConnectionString, Table and UpdateID have no sensible defaults and must be
// provided; source.BaseTask supplies defaults for Columns and Rows.
type CopyTask interface {
	// ConnectionString identifies the backend (URI or ADO.NET format).
	ConnectionString() string

	// Table is the target table, optionally schema-qualified.
	Table() string

	// Columns are used to create the table when it does not exist.
	// Returning no columns requires LoadOptions.ReflectOnly.
	Columns() []ColumnSpec

	// Rows produces the rows to insert. The sequence is consumed once.
	Rows(ctx context.Context) RowIterator

	// UpdateID uniquely names this load for completion tracking.
	UpdateID() string
}

// Runner loads rows into a table and records the run as complete.
// Run uses an existing connection; Copy connects using the task's
// connection string and then behaves as Run.
type Runner interface {
	Run(ctx context.Context, conn DBConnection, identity RunIdentity, schema TableSchema, rows RowIterator, opts LoadOptions) (*RunResult, error)
	Copy(ctx context.Context, task CopyTask, opts LoadOptions) (*RunResult, error)
}
