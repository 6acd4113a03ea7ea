// Package statestore provides durable persistence for bulk operations. Two
// implementations are available: a bbolt-backed store for single-binary
// deployments and an in-memory store for tests and ephemeral runs. Both
// guarantee that concurrent target completions of one operation serialize
// through a single atomic update, so the terminal overall status is computed
// exactly once.
package statestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

var (
	// ErrConflict is returned when creating an operation whose ID exists.
	ErrConflict = errors.New("operation already exists")

	// ErrNotFound is returned for lookups of unknown operation IDs.
	ErrNotFound = errors.New("operation not found")
)

// markRunning applies the pending -> running transition in place. The
// transition is idempotent; a terminal operation is never reverted.
func markRunning(op *orchestrator.BulkOperation, at time.Time) {
	if op.Status != orchestrator.StatusPending {
		return
	}
	op.Status = orchestrator.StatusRunning
	op.StartedAt = &at
}

// markTargetRunning flips one pending target result to running.
func markTargetRunning(op *orchestrator.BulkOperation, targetID string, at time.Time) error {
	res, ok := op.Results[targetID]
	if !ok {
		return fmt.Errorf("target %s not part of operation %s", targetID, op.ID)
	}
	if res.Status == orchestrator.TargetPending {
		res.Status = orchestrator.TargetRunning
		res.StartedAt = &at
	}
	return nil
}

// applyTargetResult overwrites one target's entry with its terminal result
// and, when it was the last outstanding one, computes the overall terminal
// status. Both writes belong to the same store transaction; FinishedAt is
// set exactly once.
func applyTargetResult(op *orchestrator.BulkOperation, targetID string, res orchestrator.TargetResult) error {
	if op.Status.Terminal() {
		return fmt.Errorf("operation %s is already %s", op.ID, op.Status)
	}
	prev, ok := op.Results[targetID]
	if !ok {
		return fmt.Errorf("target %s not part of operation %s", targetID, op.ID)
	}
	if !res.Status.Terminal() {
		return fmt.Errorf("result for target %s is not terminal", targetID)
	}
	if res.StartedAt == nil {
		res.StartedAt = prev.StartedAt
	}
	res.TargetID = targetID
	op.Results[targetID] = &res

	if !op.Status.Terminal() && op.AllTerminal() {
		now := time.Now().UTC()
		op.Status = op.TerminalStatus()
		op.FinishedAt = &now
	}
	return nil
}
