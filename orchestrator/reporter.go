package orchestrator

import "context"

// TargetStatusView is the polling view of one target inside a snapshot.
type TargetStatusView struct {
	Status TargetStatus `json:"status"`
	Detail ResultDetail `json:"detail"`
}

// Snapshot is a point-in-time view of one bulk operation for polling
// consumers. Progress is recomputed on every call, never cached, so repeated
// polls observe monotonically non-decreasing progress.
type Snapshot struct {
	OperationID     string                      `json:"operation_id"`
	Kind            Kind                        `json:"kind"`
	Status          Status                      `json:"status"`
	ProgressPercent int                         `json:"progress_percent"`
	Results         map[string]TargetStatusView `json:"results"`
}

// Reporter materializes consistent status snapshots from the store.
type Reporter struct {
	store Store
}

// NewReporter creates a status reporter over the given store.
func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// Snapshot returns the current view of one operation, or the store's
// not-found error for unknown IDs.
func (r *Reporter) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	op, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		OperationID: op.ID,
		Kind:        op.Kind,
		Status:      op.Status,
		Results:     make(map[string]TargetStatusView, len(op.Results)),
	}
	terminal := 0
	for id, res := range op.Results {
		if res.Status.Terminal() {
			terminal++
		}
		snap.Results[id] = TargetStatusView{Status: res.Status, Detail: res.Detail}
	}
	if len(op.Results) > 0 {
		snap.ProgressPercent = terminal * 100 / len(op.Results)
	}
	return snap, nil
}
