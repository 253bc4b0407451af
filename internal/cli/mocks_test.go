package cli

import (
	"context"

	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// fakeMarkerReader returns canned answers for status rendering.
type fakeMarkerReader struct {
	state    pgcopy.MarkerState
	checkErr error
	record   *pgcopy.MarkerRecord
	getErr   error
	records  []pgcopy.MarkerRecord
	listErr  error
}

func (f *fakeMarkerReader) Check(ctx context.Context, updateID string) (pgcopy.MarkerState, error) {
	return f.state, f.checkErr
}

func (f *fakeMarkerReader) Get(ctx context.Context, updateID string) (*pgcopy.MarkerRecord, error) {
	return f.record, f.getErr
}

func (f *fakeMarkerReader) List(ctx context.Context, targetTable string) ([]pgcopy.MarkerRecord, error) {
	return f.records, f.listErr
}
