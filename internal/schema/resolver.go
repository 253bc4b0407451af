package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

const (
	pgCodeDuplicateTable  = "42P07"
	pgCodeUniqueViolation = "23505" // pg_type_typname_nsp_index on concurrent CREATE TABLE
	pgCodeDuplicateObject = "42710"
	reflectOpName         = "reflect"
	createOpName          = "create"
)

// queryReflectColumns lists a table's live columns in attnum order.
// $2 is the schema; empty resolves $1 through search_path, like an
// unqualified name in any other statement would.
//
// The fourth column is the type without its modifier. An explicit cast to
// varchar(n), char(n) or bit(n) truncates or pads instead of failing, so
// values are cast to the unmodified type and the column enforces its limit
// on assignment. A typmod of -1 keeps bpchar and bit from being rendered as
// character and bit, which would mean char(1) and bit(1) in a cast.
const queryReflectColumns = `
	SELECT n.nspname, a.attname, format_type(a.atttypid, a.atttypmod), format_type(a.atttypid, -1), a.attnum
	FROM pg_catalog.pg_attribute a
	JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relname = $1
	  AND c.oid = to_regclass(CASE
	        WHEN $2::text = '' THEN quote_ident($1::text)
	        ELSE quote_ident($2::text) || '.' || quote_ident($1::text)
	      END)
	  AND c.relkind IN ('r', 'p')
	  AND a.attnum > 0
	  AND NOT a.attisdropped
	ORDER BY a.attnum
`

// Resolver resolves table names to handles. Handles are cached for the
// lifetime of the Resolver; create one per run so that every run observes
// the current catalog.
//
// Safe for concurrent use.
type Resolver struct {
	conn   pgcopy.Querier
	logger pgcopy.Logger

	mu    sync.RWMutex
	cache map[string]*pgcopy.TableHandle
}

// NewResolver panics if conn or logger is nil.
func NewResolver(conn pgcopy.Querier, logger pgcopy.Logger) *Resolver {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Resolver{
		conn:   conn,
		logger: logger,
		cache:  make(map[string]*pgcopy.TableHandle),
	}
}

// Resolve returns a handle for table.
//
// With reflectOnly the table must already exist. Otherwise columns must be a
// valid, non-empty definition; the table is created from it if absent and
// reflected if present. Column validation happens before any statement is
// issued, so an invalid definition never creates a table.
func (r *Resolver) Resolve(ctx context.Context, table string, columns []pgcopy.ColumnSpec, reflectOnly bool) (*pgcopy.TableHandle, error) {
	name, err := ParseQualifiedName(table)
	if err != nil {
		return nil, err
	}
	if !reflectOnly {
		if err := ValidateColumns(table, columns); err != nil {
			return nil, err
		}
	}

	if cached := r.cached(name.String()); cached != nil {
		return cached, nil
	}

	handle, err := r.reflect(ctx, name)
	if err != nil {
		return nil, &pgcopy.SchemaError{Table: table, Op: reflectOpName, Err: err}
	}

	switch {
	case handle != nil:
		if !reflectOnly {
			r.logger.Verbose("Table %s exists, using its definition (%d columns)", name, len(handle.Columns))
		}
	case reflectOnly:
		return nil, &pgcopy.SchemaError{Table: table, Op: reflectOpName, Err: pgcopy.ErrTableNotFound}
	default:
		handle, err = r.create(ctx, name, columns)
		if err != nil {
			return nil, &pgcopy.SchemaError{Table: table, Op: createOpName, Err: err}
		}
	}

	r.store(name.String(), handle)
	return handle, nil
}

// Reflect returns the handle for an existing table, or an error wrapping
// pgcopy.ErrTableNotFound.
func (r *Resolver) Reflect(ctx context.Context, table string) (*pgcopy.TableHandle, error) {
	return r.Resolve(ctx, table, nil, true)
}

func (r *Resolver) cached(key string) *pgcopy.TableHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[key]
}

func (r *Resolver) store(key string, handle *pgcopy.TableHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = handle
}

// reflect returns nil, nil when the table does not exist.
func (r *Resolver) reflect(ctx context.Context, name QualifiedName) (*pgcopy.TableHandle, error) {
	rows, err := r.conn.Query(ctx, queryReflectColumns, name.Name, name.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var handle *pgcopy.TableHandle
	for rows.Next() {
		var schemaName string
		var col pgcopy.Column
		if err := rows.Scan(&schemaName, &col.Name, &col.DataType, &col.CastType, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if handle == nil {
			handle = &pgcopy.TableHandle{Schema: schemaName, Name: name.Name}
		}
		handle.Columns = append(handle.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	return handle, nil
}

// create issues CREATE TABLE and reflects the result. Losing a creation race
// to another process is not an error: the winner's table is reflected.
func (r *Resolver) create(ctx context.Context, name QualifiedName, columns []pgcopy.ColumnSpec) (*pgcopy.TableHandle, error) {
	ddl := CreateTableSQL(name, columns)
	r.logger.Verbose("Creating table %s: %s", name, ddl)

	created := true
	if _, err := r.conn.Exec(ctx, ddl); err != nil {
		if !isCreateRace(err) {
			return nil, err
		}
		r.logger.Info("Table %s was created concurrently, reflecting it", name)
		created = false
	}

	handle, err := r.reflect(ctx, name)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, fmt.Errorf("table %s not visible after create: %w", name, pgcopy.ErrTableNotFound)
	}
	handle.Created = created
	return handle, nil
}

func isCreateRace(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgCodeDuplicateTable, pgCodeUniqueViolation, pgCodeDuplicateObject:
		return true
	}
	return false
}
