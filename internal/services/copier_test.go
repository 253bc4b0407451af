package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgcopy/internal/loader"
	"github.com/vvka-141/pgcopy/internal/logging"
	"github.com/vvka-141/pgcopy/internal/metrics"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

type harness struct {
	log      events
	conn     *mockConn
	tx       *mockTx
	resolver *mockResolver
	store    *mockStore
	loader   *mockLoader
	observer *mockObserver
	svc      *CopyService
}

func newHarness() *harness {
	h := &harness{observer: &mockObserver{}}
	h.tx = &mockTx{log: &h.log}
	h.conn = &mockConn{log: &h.log, tx: h.tx}
	h.resolver = &mockResolver{log: &h.log, handle: &pgcopy.TableHandle{
		Name:    "events",
		Columns: []pgcopy.Column{{Name: "id", DataType: "integer", Position: 1}},
	}}
	h.store = &mockStore{log: &h.log}
	h.loader = &mockLoader{log: &h.log, stats: loader.Stats{Rows: 5, Batches: 3}}

	factory := func(*pgcopy.ConnectionConfig) (pgcopy.Connector, error) { return &mockConnector{}, nil }
	h.svc = NewCopyService(factory, logging.NewNullLogger(), WithObserver(h.observer))
	h.svc.newComponents = func(pgcopy.DBConnection, pgcopy.RunIdentity, pgcopy.LoadOptions) components {
		return components{resolver: h.resolver, store: h.store, loader: h.loader}
	}
	return h
}

var testIdentity = pgcopy.RunIdentity{TargetTable: "events", UpdateID: "events-2024-03-01"}

func testSchema() pgcopy.TableSchema {
	return pgcopy.NewTableSchema([]pgcopy.ColumnSpec{{Name: "id", Type: "integer"}}, false)
}

func testRows() pgcopy.RowIterator {
	return pgcopy.RowsFromSlice([]pgcopy.Record{{1}, {2}, {3}, {4}, {5}})
}

func testOptions() pgcopy.LoadOptions {
	opts := pgcopy.DefaultLoadOptions()
	opts.ChunkSize = 2
	return opts
}

func (h *harness) run() (*pgcopy.RunResult, error) {
	return h.svc.Run(context.Background(), h.conn, testIdentity, testSchema(), testRows(), testOptions())
}

func TestNewCopyService_NilDeps(t *testing.T) {
	factory := func(*pgcopy.ConnectionConfig) (pgcopy.Connector, error) { return nil, nil }

	assert.Panics(t, func() { NewCopyService(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { NewCopyService(factory, nil) })
	assert.NotPanics(t, func() { NewCopyService(factory, logging.NewNullLogger(), WithObserver(nil)) })
}

func TestRun_Success(t *testing.T) {
	h := newHarness()

	result, err := h.run()
	require.NoError(t, err)

	assert.Equal(t, events{"resolve events", "begin", "load", "commit", "touch events-2024-03-01"}, h.log)
	assert.Equal(t, testIdentity, result.Identity)
	assert.Equal(t, int64(5), result.Rows)
	assert.Equal(t, 3, result.Batches)
	assert.Same(t, h.resolver.handle, result.Table)
	assert.Same(t, h.tx, h.loader.scope, "rows are inserted through the run's transaction")
	assert.Equal(t, 2, h.loader.chunk)
	assert.Equal(t, []pgcopy.RunIdentity{testIdentity}, h.store.touched)
	assert.Equal(t, []string{metrics.OutcomeLoaded}, h.observer.outcomes)
}

func TestRun_PassesSchemaToResolver(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Run(context.Background(), h.conn, testIdentity, pgcopy.NewTableSchema(nil, true), testRows(), testOptions())
	require.NoError(t, err)
	assert.True(t, h.resolver.gotReflectOnly)

	h = newHarness()
	opts := testOptions()
	opts.ReflectOnly = true
	_, err = h.svc.Run(context.Background(), h.conn, testIdentity, testSchema(), testRows(), opts)
	require.NoError(t, err)
	assert.True(t, h.resolver.gotReflectOnly, "LoadOptions.ReflectOnly also selects reflection")
	assert.Equal(t, []pgcopy.ColumnSpec{{Name: "id", Type: "integer"}}, h.resolver.gotColumns)
}

func TestRun_ResolveFailureWritesNothing(t *testing.T) {
	h := newHarness()
	h.resolver.err = &pgcopy.SchemaError{Table: "events", Op: "create", Err: errors.New("permission denied")}

	_, err := h.run()
	require.ErrorIs(t, err, pgcopy.ErrSchema)

	assert.Equal(t, events{"resolve events"}, h.log)
	assert.Equal(t, []string{metrics.OutcomeFailed}, h.observer.outcomes)
}

func TestRun_LoadFailureRollsBackAndSkipsMarker(t *testing.T) {
	h := newHarness()
	h.loader.err = &pgcopy.InsertError{Table: "events", Batch: 2, Rows: 2, Err: errors.New("value too long")}

	_, err := h.run()
	require.ErrorIs(t, err, pgcopy.ErrInsertFailed)

	assert.Equal(t, events{"resolve events", "begin", "load", "rollback"}, h.log)
	assert.True(t, h.tx.rolled)
	assert.False(t, h.tx.committed)
	assert.Empty(t, h.store.touched)
	assert.Equal(t, pgcopy.ExitLoadFailed, pgcopy.ExitCodeForError(err))
}

func TestRun_RowShapeFailureRollsBack(t *testing.T) {
	h := newHarness()
	h.loader.err = &pgcopy.RowShapeError{Table: "events", Row: 3, Got: 2, Expected: 1}

	_, err := h.run()
	require.ErrorIs(t, err, pgcopy.ErrRowShapeMismatch)
	assert.True(t, h.tx.rolled)
	assert.Empty(t, h.store.touched)
}

func TestRun_BeginFailure(t *testing.T) {
	h := newHarness()
	h.conn.beginErr = errors.New("too many connections")

	_, err := h.run()

	var txErr *pgcopy.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "begin", txErr.Op)
	assert.Equal(t, events{"resolve events", "begin"}, h.log)
}

func TestRun_CommitFailureSkipsMarker(t *testing.T) {
	h := newHarness()
	h.tx.commitErr = errors.New("serialization failure")

	_, err := h.run()

	var txErr *pgcopy.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "commit", txErr.Op)
	assert.ErrorIs(t, err, pgcopy.ErrTransactionFailed)
	assert.Empty(t, h.store.touched)
	assert.NotContains(t, h.log, "touch events-2024-03-01")
}

func TestRun_MarkerFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.store.err = &pgcopy.MarkerAssertionError{UpdateID: testIdentity.UpdateID}

	result, err := h.run()
	require.ErrorIs(t, err, pgcopy.ErrMarkerAssertion)

	assert.Nil(t, result)
	assert.True(t, h.tx.committed, "data stays committed")
	assert.Equal(t, pgcopy.ExitMarkerAssertion, pgcopy.ExitCodeForError(err))
	assert.Equal(t, []string{metrics.OutcomeFailed}, h.observer.outcomes)
}

func TestRun_InvalidInputsNeverTouchDatabase(t *testing.T) {
	tests := []struct {
		name     string
		identity pgcopy.RunIdentity
		mutate   func(*pgcopy.LoadOptions)
		nilConn  bool
	}{
		{name: "missing update id", identity: pgcopy.RunIdentity{TargetTable: "events"}},
		{name: "missing table", identity: pgcopy.RunIdentity{UpdateID: "x"}},
		{name: "zero chunk size", identity: testIdentity, mutate: func(o *pgcopy.LoadOptions) { o.ChunkSize = 0 }},
		{name: "empty marker table", identity: testIdentity, mutate: func(o *pgcopy.LoadOptions) { o.MarkerTable = "" }},
		{name: "nil connection", identity: testIdentity, nilConn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			opts := testOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			var conn pgcopy.DBConnection = h.conn
			if tt.nilConn {
				conn = nil
			}

			_, err := h.svc.Run(context.Background(), conn, tt.identity, testSchema(), testRows(), opts)
			require.ErrorIs(t, err, pgcopy.ErrInvalidConfig)
			assert.Empty(t, h.log)
		})
	}
}

func TestRun_FreshComponentsPerRun(t *testing.T) {
	h := newHarness()
	built := 0
	h.svc.newComponents = func(pgcopy.DBConnection, pgcopy.RunIdentity, pgcopy.LoadOptions) components {
		built++
		return components{resolver: h.resolver, store: h.store, loader: h.loader}
	}

	_, err := h.run()
	require.NoError(t, err)
	_, err = h.run()
	require.NoError(t, err)

	assert.Equal(t, 2, built)
}

func TestCopy_ConfigurationErrors(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Copy(context.Background(), &stubTask{table: "events", updateID: "u"}, testOptions())
	assert.ErrorIs(t, err, pgcopy.ErrInvalidConfig)

	_, err = h.svc.Copy(context.Background(), &stubTask{conn: "Host=;Port=abc", table: "events", updateID: "u"}, testOptions())
	assert.ErrorIs(t, err, pgcopy.ErrInvalidConfig)
}

func TestCopy_ConnectFailure(t *testing.T) {
	connectErr := errors.New("connection refused")
	var got *pgcopy.ConnectionConfig
	factory := func(cfg *pgcopy.ConnectionConfig) (pgcopy.Connector, error) {
		got = cfg
		return &mockConnector{err: connectErr}, nil
	}
	svc := NewCopyService(factory, logging.NewNullLogger())

	_, err := svc.Copy(context.Background(), &stubTask{conn: "postgresql://loader@db.internal:5433/warehouse", table: "events", updateID: "u"}, testOptions())
	require.ErrorIs(t, err, connectErr)

	require.NotNil(t, got)
	assert.Equal(t, "db.internal", got.Host)
	assert.Equal(t, 5433, got.Port)
	assert.Equal(t, "warehouse", got.Database)
	assert.Equal(t, pgcopy.DefaultAppName, got.AppName)
}

func TestCopy_ConnectorFactoryFailure(t *testing.T) {
	factory := func(*pgcopy.ConnectionConfig) (pgcopy.Connector, error) {
		return nil, pgcopy.ErrUnsupportedAuthMethod
	}
	svc := NewCopyService(factory, logging.NewNullLogger())

	_, err := svc.Copy(context.Background(), &stubTask{conn: "postgresql://localhost/app", table: "events", updateID: "u"}, testOptions())
	assert.ErrorIs(t, err, pgcopy.ErrUnsupportedAuthMethod)
}

type stubTask struct {
	conn     string
	table    string
	updateID string
	columns  []pgcopy.ColumnSpec
	rows     []pgcopy.Record
}

func (s *stubTask) ConnectionString() string                { return s.conn }
func (s *stubTask) Table() string                           { return s.table }
func (s *stubTask) Columns() []pgcopy.ColumnSpec            { return s.columns }
func (s *stubTask) UpdateID() string                        { return s.updateID }
func (s *stubTask) Rows(context.Context) pgcopy.RowIterator { return pgcopy.RowsFromSlice(s.rows) }
