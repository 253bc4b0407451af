package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgcopy/internal/loader"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

type mockConnector struct {
	pool *pgxpool.Pool
	err  error
}

func (m *mockConnector) Connect(_ context.Context) (*pgxpool.Pool, error) {
	return m.pool, m.err
}

// events is a shared, ordered log of what the fakes were asked to do.
type events []string

func (e *events) add(s string) { *e = append(*e, s) }

type mockConn struct {
	log      *events
	beginErr error
	tx       *mockTx
}

func (m *mockConn) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec on pool")
}

func (m *mockConn) QueryRow(_ context.Context, _ string, _ ...any) pgcopy.Row {
	panic("unexpected QueryRow on pool")
}

func (m *mockConn) Query(_ context.Context, _ string, _ ...any) (pgcopy.Rows, error) {
	return nil, errors.New("unexpected Query on pool")
}

func (m *mockConn) Begin(_ context.Context) (pgcopy.Tx, error) {
	m.log.add("begin")
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

type mockTx struct {
	log       *events
	commitErr error
	committed bool
	rolled    bool
}

func (m *mockTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockTx) QueryRow(_ context.Context, _ string, _ ...any) pgcopy.Row {
	panic("unexpected QueryRow in tx")
}

func (m *mockTx) Query(_ context.Context, _ string, _ ...any) (pgcopy.Rows, error) {
	return nil, errors.New("unexpected Query in tx")
}

func (m *mockTx) Commit(_ context.Context) error {
	m.log.add("commit")
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return nil
	}
	m.log.add("rollback")
	m.rolled = true
	return nil
}

type mockResolver struct {
	log    *events
	handle *pgcopy.TableHandle
	err    error

	gotColumns     []pgcopy.ColumnSpec
	gotReflectOnly bool
}

func (m *mockResolver) Resolve(_ context.Context, table string, columns []pgcopy.ColumnSpec, reflectOnly bool) (*pgcopy.TableHandle, error) {
	m.log.add("resolve " + table)
	m.gotColumns = columns
	m.gotReflectOnly = reflectOnly
	return m.handle, m.err
}

type mockStore struct {
	log     *events
	err     error
	touched []pgcopy.RunIdentity
}

func (m *mockStore) Touch(_ context.Context, updateID, targetTable string) error {
	m.log.add("touch " + updateID)
	if m.err != nil {
		return m.err
	}
	m.touched = append(m.touched, pgcopy.RunIdentity{TargetTable: targetTable, UpdateID: updateID})
	return nil
}

type mockLoader struct {
	log   *events
	stats loader.Stats
	err   error
	scope pgcopy.Querier
	chunk int
}

func (m *mockLoader) Load(_ context.Context, rows pgcopy.RowIterator, _ *pgcopy.TableHandle, chunkSize int, scope pgcopy.Querier) (loader.Stats, error) {
	m.log.add("load")
	m.scope = scope
	m.chunk = chunkSize
	for range rows {
	}
	return m.stats, m.err
}

type mockObserver struct {
	batches  int
	outcomes []string
}

func (m *mockObserver) BatchInserted(_ string, _ int) { m.batches++ }

func (m *mockObserver) RunFinished(_ string, outcome string, _ time.Duration) {
	m.outcomes = append(m.outcomes, outcome)
}
