package pgcopy

import "context"

// Approver confirms operations that record state without loading data, such
// as marking a run complete by hand.
//
// Implementations:
//   - ForcedApprover: approves without prompting (--force)
//   - InteractiveApprover: asks the user to type the update id
type Approver interface {
	// RequestApproval returns true if the user agrees to mark updateID complete.
	RequestApproval(ctx context.Context, updateID string) (bool, error)
}
