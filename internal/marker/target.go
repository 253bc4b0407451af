package marker

import (
	"context"

	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// Target is the completion state of one run.
type Target struct {
	store    *Store
	identity pgcopy.RunIdentity
}

func NewTarget(store *Store, identity pgcopy.RunIdentity) *Target {
	if store == nil {
		panic("store cannot be nil")
	}
	return &Target{store: store, identity: identity}
}

func (t *Target) Identity() pgcopy.RunIdentity {
	return t.identity
}

// Exists reports completion, treating any failure as "not complete".
func (t *Target) Exists(ctx context.Context) bool {
	return t.store.Exists(ctx, t.identity.UpdateID)
}

func (t *Target) Check(ctx context.Context) (pgcopy.MarkerState, error) {
	return t.store.Check(ctx, t.identity.UpdateID)
}

func (t *Target) Touch(ctx context.Context) error {
	return t.store.Touch(ctx, t.identity.UpdateID, t.identity.TargetTable)
}
