package marker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vvka-141/pgcopy/internal/schema"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

const (
	ColumnUpdateID    = "update_id"
	ColumnTargetTable = "target_table"
	ColumnInserted    = "inserted"

	pgCodeUniqueViolation = "23505"
)

// Columns is the fixed marker table definition.
func Columns() []pgcopy.ColumnSpec {
	return []pgcopy.ColumnSpec{
		{Name: ColumnUpdateID, Type: fmt.Sprintf("varchar(%d)", pgcopy.MarkerFieldMaxLength), Constraints: "PRIMARY KEY"},
		{Name: ColumnTargetTable, Type: fmt.Sprintf("varchar(%d)", pgcopy.MarkerFieldMaxLength)},
		{Name: ColumnInserted, Type: "timestamp", Constraints: "DEFAULT CURRENT_TIMESTAMP"},
	}
}

// Store reads and writes completion markers in one marker table.
//
// Safe for concurrent use.
type Store struct {
	conn     pgcopy.DBConnection
	resolver *schema.Resolver
	table    string
	logger   pgcopy.Logger
	now      func() time.Time

	mu     sync.Mutex
	handle *pgcopy.TableHandle
}

// NewStore returns a store for the marker table named table (optionally
// schema-qualified). Panics if conn, resolver or logger is nil, or table is empty.
func NewStore(conn pgcopy.DBConnection, resolver *schema.Resolver, table string, logger pgcopy.Logger) *Store {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if table == "" {
		panic("marker table name cannot be empty")
	}
	return &Store{
		conn:     conn,
		resolver: resolver,
		table:    table,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for the inserted column.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Table returns the configured marker table name.
func (s *Store) Table() string {
	return s.table
}

// EnsureTable creates the marker table if absent, or reflects it. A reflected
// table lacking any of the three marker columns is a schema error.
func (s *Store) EnsureTable(ctx context.Context) (*pgcopy.TableHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return s.handle, nil
	}

	handle, err := s.resolver.Resolve(ctx, s.table, Columns(), false)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{ColumnUpdateID, ColumnTargetTable, ColumnInserted} {
		if !handle.HasColumn(col) {
			return nil, &pgcopy.SchemaError{
				Table: s.table,
				Op:    "reflect",
				Err:   fmt.Errorf("marker table is missing column %q", col),
			}
		}
	}
	if handle.Created {
		s.logger.Verbose("Created marker table %s", handle.Identifier())
	}

	s.handle = handle
	return handle, nil
}

// Check reports whether updateID has a marker. Failures to create, reflect
// or query the marker table yield MarkerUnknown with an error wrapping
// pgcopy.ErrMarkerUnknown.
func (s *Store) Check(ctx context.Context, updateID string) (pgcopy.MarkerState, error) {
	handle, err := s.EnsureTable(ctx)
	if err != nil {
		return pgcopy.MarkerUnknown, fmt.Errorf("%w: %w", pgcopy.ErrMarkerUnknown, err)
	}

	found, err := markerExists(ctx, s.conn, handle, updateID)
	if err != nil {
		return pgcopy.MarkerUnknown, fmt.Errorf("%w: %w", pgcopy.ErrMarkerUnknown, err)
	}
	if found {
		return pgcopy.MarkerPresent, nil
	}
	return pgcopy.MarkerAbsent, nil
}

// Exists reports whether updateID has a marker. Any failure is reported as
// false and logged at error level; use Check to tell the two apart.
func (s *Store) Exists(ctx context.Context, updateID string) bool {
	state, err := s.Check(ctx, updateID)
	if err != nil {
		s.logger.Error("Could not check completion of update %q in %s: %v", updateID, s.table, err)
		return false
	}
	return state == pgcopy.MarkerPresent
}

// Touch records updateID as complete for targetTable.
//
// In one transaction the marker is inserted if absent, or its inserted time
// and target table are refreshed if present. Losing an insert race on the
// primary key counts as success. After commit the marker is read back; if it
// is not observed the result is a *pgcopy.MarkerAssertionError.
func (s *Store) Touch(ctx context.Context, updateID, targetTable string) error {
	identity := pgcopy.RunIdentity{TargetTable: targetTable, UpdateID: updateID}
	if err := identity.Validate(); err != nil {
		return err
	}

	handle, err := s.EnsureTable(ctx)
	if err != nil {
		return err
	}

	if err := s.upsert(ctx, handle, identity); err != nil {
		return err
	}

	state, err := s.Check(ctx, updateID)
	if state != pgcopy.MarkerPresent {
		return &pgcopy.MarkerAssertionError{UpdateID: updateID, Err: err}
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, handle *pgcopy.TableHandle, identity pgcopy.RunIdentity) (err error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return &pgcopy.TransactionError{Op: "begin", Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				s.logger.Error("Rollback of marker transaction failed: %v", rbErr)
			}
		}
	}()

	found, err := markerExists(ctx, tx, handle, identity.UpdateID)
	if err != nil {
		return fmt.Errorf("failed to read marker: %w", err)
	}

	inserted := s.now().UTC()
	if found {
		_, err = tx.Exec(ctx, updateMarkerSQL(handle), identity.UpdateID, identity.TargetTable, inserted)
		if err != nil {
			return fmt.Errorf("failed to update marker: %w", err)
		}
		s.logger.Verbose("Refreshed completion marker %s", identity)
	} else {
		_, err = tx.Exec(ctx, insertMarkerSQL(handle), identity.UpdateID, identity.TargetTable, inserted)
		if err != nil {
			if isUniqueViolation(err) {
				s.logger.Verbose("Completion marker %s was recorded concurrently", identity)
				_ = tx.Rollback(context.WithoutCancel(ctx))
				return nil
			}
			return fmt.Errorf("failed to insert marker: %w", err)
		}
		s.logger.Verbose("Recorded completion marker %s", identity)
	}

	if err = tx.Commit(ctx); err != nil {
		return &pgcopy.TransactionError{Op: "commit", Err: err}
	}
	return nil
}

// Get returns the marker for updateID, or nil if there is none.
func (s *Store) Get(ctx context.Context, updateID string) (*pgcopy.MarkerRecord, error) {
	handle, err := s.EnsureTable(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := scanRecord(s.conn.QueryRow(ctx, selectMarkerSQL(handle)+" WHERE "+quote(ColumnUpdateID)+" = $1", updateID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read marker %q: %w", updateID, err)
	}
	return rec, nil
}

// List returns markers for targetTable, newest first. An empty targetTable
// lists every marker.
func (s *Store) List(ctx context.Context, targetTable string) ([]pgcopy.MarkerRecord, error) {
	handle, err := s.EnsureTable(ctx)
	if err != nil {
		return nil, err
	}

	query := selectMarkerSQL(handle)
	var args []any
	if targetTable != "" {
		query += " WHERE " + quote(ColumnTargetTable) + " = $1"
		args = append(args, targetTable)
	}
	query += " ORDER BY " + quote(ColumnInserted) + " DESC NULLS LAST, " + quote(ColumnUpdateID)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	var records []pgcopy.MarkerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	return records, nil
}

func markerExists(ctx context.Context, q pgcopy.Querier, handle *pgcopy.TableHandle, updateID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", handle.Identifier(), quote(ColumnUpdateID))

	var found bool
	if err := q.QueryRow(ctx, query, updateID).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func insertMarkerSQL(handle *pgcopy.TableHandle) string {
	return fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)",
		handle.Identifier(), quote(ColumnUpdateID), quote(ColumnTargetTable), quote(ColumnInserted))
}

func updateMarkerSQL(handle *pgcopy.TableHandle) string {
	return fmt.Sprintf("UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1",
		handle.Identifier(), quote(ColumnTargetTable), quote(ColumnInserted), quote(ColumnUpdateID))
}

func selectMarkerSQL(handle *pgcopy.TableHandle) string {
	return fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		quote(ColumnUpdateID), quote(ColumnTargetTable), quote(ColumnInserted), handle.Identifier())
}

func scanRecord(row pgcopy.Row) (*pgcopy.MarkerRecord, error) {
	var (
		updateID    string
		targetTable pgtype.Text
		inserted    pgtype.Timestamp
	)
	if err := row.Scan(&updateID, &targetTable, &inserted); err != nil {
		return nil, err
	}
	return &pgcopy.MarkerRecord{
		UpdateID:    updateID,
		TargetTable: targetTable.String,
		InsertedAt:  inserted.Time,
	}, nil
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}
