package timesheet

import (
	"context"
	"strings"
)

// BulkItem names one record of a bulk request. Version is optional; when
// set, the record must still be at that version.
type BulkItem struct {
	ID      string
	Version int64
}

// BulkResult is the outcome for one record.
type BulkResult struct {
	ID      string
	Status  Status
	Version int64
	Err     error
}

// OK reports whether the transition was applied.
func (r BulkResult) OK() bool { return r.Err == nil }

// BulkTransition approves or rejects each record independently. Only
// Submitted records qualify; anything else gets a *StateTransitionError in
// its own result. A failure never undoes the records already processed,
// and the result list has one entry per item in request order.
//
// The returned error is non-nil only when the request as a whole is
// unusable (unknown action, a reject without notes, a non-reviewer actor).
// If ctx is cancelled midway, the remaining items report ctx.Err().
func (s *Service) BulkTransition(ctx context.Context, actor Actor, items []BulkItem, action Action, notes string) ([]BulkResult, error) {
	switch action {
	case ActionApprove:
	case ActionReject:
		if strings.TrimSpace(notes) == "" {
			return nil, ErrNotesRequired
		}
	default:
		return nil, ErrUnknownAction
	}
	if !actor.Reviewer() {
		return nil, notPermitted(actor, action)
	}

	results := make([]BulkResult, len(items))
	succeeded := 0
	for i, item := range items {
		results[i].ID = item.ID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		var rec *Record
		var err error
		if action == ActionApprove {
			rec, err = s.Approve(ctx, actor, item.ID, item.Version, notes)
		} else {
			rec, err = s.Reject(ctx, actor, item.ID, item.Version, notes)
		}
		if err != nil {
			results[i].Err = err
			continue
		}
		results[i].Status, results[i].Version = rec.Status, rec.Version
		succeeded++
	}

	s.log(ctx, "bulk_"+string(action), "actor", actor.ID).
		Info("bulk transition finished", "requested", len(items), "succeeded", succeeded)
	return results, nil
}
