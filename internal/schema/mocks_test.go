package schema

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// fakeCatalog answers the reflection query from an in-memory table set and
// records DDL. createErr, if set, is returned by the next Exec; the table is
// still added when createAnyway is true, simulating a concurrent creator.
type fakeCatalog struct {
	tables       map[string][]pgcopy.Column // key: relation name
	execs        []string
	queries      int
	createErr    error
	createAnyway bool
	queryErr     error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{tables: make(map[string][]pgcopy.Column)}
}

func (f *fakeCatalog) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		if f.createAnyway {
			f.tables["events"] = []pgcopy.Column{{Name: "id", DataType: "integer", Position: 1}}
		}
		return pgconn.CommandTag{}, err
	}
	// Tests only create "events".
	f.tables["events"] = []pgcopy.Column{
		{Name: "id", DataType: "integer", Position: 1},
		{Name: "name", DataType: "character varying(64)", Position: 2},
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeCatalog) QueryRow(ctx context.Context, sql string, args ...any) pgcopy.Row {
	return fakeRow{err: errors.New("not implemented")}
}

func (f *fakeCatalog) Query(ctx context.Context, sql string, args ...any) (pgcopy.Rows, error) {
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	name := args[0].(string)
	schemaName := args[1].(string)
	if schemaName == "" {
		schemaName = "public"
	}
	return &fakeRows{schema: schemaName, cols: f.tables[name], idx: -1}, nil
}

type fakeRow struct{ err error }

func (r fakeRow) Scan(dest ...any) error { return r.err }

type fakeRows struct {
	schema string
	cols   []pgcopy.Column
	idx    int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.cols)
}

func (r *fakeRows) Scan(dest ...any) error {
	c := r.cols[r.idx]
	*dest[0].(*string) = r.schema
	*dest[1].(*string) = c.Name
	*dest[2].(*string) = c.DataType
	*dest[3].(*string) = c.CastType
	*dest[4].(*int) = c.Position
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}
