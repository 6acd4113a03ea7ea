package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

// Resolver expands a request selector into an ordered, deduplicated list of
// target descriptors. Resolution only reads the catalog; it never mutates
// anything, and it fails before any operation record is created.
type Resolver struct {
	store Reader
}

// NewResolver creates a resolver over the given catalog view.
func NewResolver(store Reader) *Resolver {
	return &Resolver{store: store}
}

// Resolve validates the selector and looks up connection parameters.
// Exactly one of EnvironmentIDs and GroupID must be set. Explicitly listed
// environments must exist; group members that have been deleted since the
// group was saved are skipped. An empty resolution is a validation failure,
// never an empty-success operation.
func (r *Resolver) Resolve(ctx context.Context, sel orchestrator.Selector) ([]orchestrator.TargetDescriptor, error) {
	hasIDs := len(sel.EnvironmentIDs) > 0
	hasGroup := sel.GroupID != ""

	switch {
	case hasIDs && hasGroup:
		return nil, &orchestrator.ValidationError{Field: "selector", Reason: "environment_ids and group_id are mutually exclusive"}
	case !hasIDs && !hasGroup:
		return nil, &orchestrator.ValidationError{Field: "selector", Reason: "either environment_ids or group_id is required"}
	}

	var ids []string
	if hasGroup {
		group, err := r.store.GetGroup(ctx, sel.GroupID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &orchestrator.ValidationError{Field: "group_id", Reason: fmt.Sprintf("unknown group %s", sel.GroupID)}
			}
			return nil, err
		}
		ids = group.EnvironmentIDs
	} else {
		ids = sel.EnvironmentIDs
	}

	seen := make(map[string]struct{}, len(ids))
	targets := make([]orchestrator.TargetDescriptor, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		env, err := r.store.GetEnvironment(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				if hasGroup {
					continue
				}
				return nil, &orchestrator.ValidationError{Field: "environment_ids", Reason: fmt.Sprintf("unknown environment %s", id)}
			}
			return nil, err
		}
		if hasGroup && !env.IsActive {
			continue
		}
		targets = append(targets, orchestrator.TargetDescriptor{
			ID:          env.ID,
			Name:        env.Name,
			URL:         env.URL,
			APIToken:    env.APIToken,
			InsecureSSL: env.InsecureSSL,
		})
	}

	if len(targets) == 0 {
		return nil, &orchestrator.ValidationError{Field: "selector", Reason: "selector resolves to no targets"}
	}
	return targets, nil
}
