package loader

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// recordingScope captures every Exec call. failOn makes the n-th Exec (1-based)
// fail with err.
type recordingScope struct {
	statements []string
	batches    [][][]pgtype.Text
	failOn     int
	err        error
}

func (s *recordingScope) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.statements = append(s.statements, sql)
	if s.failOn == len(s.statements) {
		return pgconn.CommandTag{}, s.err
	}
	cols := make([][]pgtype.Text, len(args))
	for i, a := range args {
		src := a.([]pgtype.Text)
		cols[i] = append([]pgtype.Text(nil), src...)
	}
	s.batches = append(s.batches, cols)
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

func (s *recordingScope) QueryRow(ctx context.Context, sql string, args ...any) pgcopy.Row {
	panic("loader must not query")
}

func (s *recordingScope) Query(ctx context.Context, sql string, args ...any) (pgcopy.Rows, error) {
	return nil, errors.New("loader must not query")
}

// rowsOf returns the number of rows in batch i.
func (s *recordingScope) rowsOf(i int) int {
	if len(s.batches[i]) == 0 {
		return 0
	}
	return len(s.batches[i][0])
}

func testTable() *pgcopy.TableHandle {
	return &pgcopy.TableHandle{
		Schema: "public",
		Name:   "items",
		Columns: []pgcopy.Column{
			{Name: "id", DataType: "integer", Position: 1},
			{Name: "label", DataType: "text", Position: 2},
		},
	}
}
