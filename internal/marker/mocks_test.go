package marker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// fakeMarkerDB is an in-memory stand-in for a server holding one marker
// table. It understands exactly the statements Store and schema.Resolver
// issue, dispatching on SQL prefixes.
type fakeMarkerDB struct {
	mu sync.Mutex

	tableExists bool
	columns     []pgcopy.Column
	records     map[string]pgcopy.MarkerRecord

	queryErr       error  // returned by every read
	insertErr      error  // returned by the next INSERT
	forgetOnCommit bool   // commit succeeds but writes are lost
	hiddenFromTx   string // update id invisible to new transactions
	creates        int
	statements     []string
}

func newFakeMarkerDB() *fakeMarkerDB {
	return &fakeMarkerDB{records: make(map[string]pgcopy.MarkerRecord)}
}

func markerCatalogColumns() []pgcopy.Column {
	return []pgcopy.Column{
		{Name: ColumnUpdateID, DataType: "character varying(128)", Position: 1},
		{Name: ColumnTargetTable, DataType: "character varying(128)", Position: 2},
		{Name: ColumnInserted, DataType: "timestamp without time zone", Position: 3},
	}
}

func (f *fakeMarkerDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execLocked(f.records, sql, args)
}

func (f *fakeMarkerDB) execLocked(target map[string]pgcopy.MarkerRecord, sql string, args []any) (pgconn.CommandTag, error) {
	f.statements = append(f.statements, sql)
	switch {
	case strings.HasPrefix(sql, "CREATE TABLE"):
		f.creates++
		f.tableExists = true
		f.columns = markerCatalogColumns()
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case strings.HasPrefix(sql, "INSERT"):
		if f.insertErr != nil {
			err := f.insertErr
			f.insertErr = nil
			return pgconn.CommandTag{}, err
		}
		target[args[0].(string)] = pgcopy.MarkerRecord{UpdateID: args[0].(string), TargetTable: args[1].(string), InsertedAt: args[2].(time.Time)}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "UPDATE"):
		if !strings.Contains(sql, "WHERE") {
			panic("unscoped marker update")
		}
		id := args[0].(string)
		if _, ok := target[id]; ok {
			target[id] = pgcopy.MarkerRecord{UpdateID: id, TargetTable: args[1].(string), InsertedAt: args[2].(time.Time)}
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	panic("unexpected statement: " + sql)
}

func (f *fakeMarkerDB) QueryRow(ctx context.Context, sql string, args ...any) pgcopy.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryRowLocked(f.records, sql, args)
}

func (f *fakeMarkerDB) queryRowLocked(source map[string]pgcopy.MarkerRecord, sql string, args []any) pgcopy.Row {
	if f.queryErr != nil {
		return errRow{f.queryErr}
	}
	switch {
	case strings.HasPrefix(sql, "SELECT EXISTS"):
		_, ok := source[args[0].(string)]
		return existsRow{ok}
	case strings.HasPrefix(sql, `SELECT "update_id"`):
		rec, ok := source[args[0].(string)]
		if !ok {
			return errRow{pgx.ErrNoRows}
		}
		return recordRow{rec}
	}
	panic("unexpected query row: " + sql)
}

func (f *fakeMarkerDB) Query(ctx context.Context, sql string, args ...any) (pgcopy.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	if strings.Contains(sql, "pg_catalog.pg_attribute") {
		var cols []pgcopy.Column
		if f.tableExists {
			cols = f.columns
		}
		return &catalogRows{cols: cols, idx: -1}, nil
	}

	var recs []pgcopy.MarkerRecord
	for _, rec := range f.records {
		if len(args) == 0 || rec.TargetTable == args[0].(string) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].InsertedAt.After(recs[j].InsertedAt) })
	return &recordRows{recs: recs, idx: -1}, nil
}

func (f *fakeMarkerDB) Begin(ctx context.Context) (pgcopy.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := make(map[string]pgcopy.MarkerRecord, len(f.records))
	for k, v := range f.records {
		if k != f.hiddenFromTx {
			pending[k] = v
		}
	}
	return &fakeTx{db: f, pending: pending}, nil
}

type fakeTx struct {
	db      *fakeMarkerDB
	pending map[string]pgcopy.MarkerRecord
	done    bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.db.execLocked(t.pending, sql, args)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgcopy.Row {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	return t.db.queryRowLocked(t.pending, sql, args)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgcopy.Rows, error) {
	panic("not used in transactions")
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	t.done = true
	if !t.db.forgetOnCommit {
		t.db.records = t.pending
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

type existsRow struct{ found bool }

func (r existsRow) Scan(dest ...any) error {
	*dest[0].(*bool) = r.found
	return nil
}

type recordRow struct{ rec pgcopy.MarkerRecord }

func (r recordRow) Scan(dest ...any) error {
	*dest[0].(*string) = r.rec.UpdateID
	*dest[1].(*pgtype.Text) = pgtype.Text{String: r.rec.TargetTable, Valid: true}
	*dest[2].(*pgtype.Timestamp) = pgtype.Timestamp{Time: r.rec.InsertedAt, Valid: true}
	return nil
}

type recordRows struct {
	recs []pgcopy.MarkerRecord
	idx  int
}

func (r *recordRows) Next() bool {
	r.idx++
	return r.idx < len(r.recs)
}

func (r *recordRows) Scan(dest ...any) error { return recordRow{r.recs[r.idx]}.Scan(dest...) }
func (r *recordRows) Err() error             { return nil }
func (r *recordRows) Close()                 {}

type catalogRows struct {
	cols []pgcopy.Column
	idx  int
}

func (r *catalogRows) Next() bool {
	r.idx++
	return r.idx < len(r.cols)
}

func (r *catalogRows) Scan(dest ...any) error {
	c := r.cols[r.idx]
	*dest[0].(*string) = "public"
	*dest[1].(*string) = c.Name
	*dest[2].(*string) = c.DataType
	*dest[3].(*string) = c.CastType
	*dest[4].(*int) = c.Position
	return nil
}

func (r *catalogRows) Err() error { return nil }
func (r *catalogRows) Close()     {}
