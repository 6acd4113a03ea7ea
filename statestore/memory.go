package statestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

// MemoryStore keeps operations in process memory. All mutations serialize on
// one mutex, so it satisfies the same exactly-once finalization contract as
// the bolt store. Snapshots are deep copies; callers never observe
// store-owned state.
type MemoryStore struct {
	mu  sync.Mutex
	ops map[string]*orchestrator.BulkOperation
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*orchestrator.BulkOperation)}
}

// Create stores a new operation, failing with ErrConflict on duplicates.
func (s *MemoryStore) Create(ctx context.Context, op *orchestrator.BulkOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ops[op.ID]; exists {
		return fmt.Errorf("operation %s: %w", op.ID, ErrConflict)
	}
	s.ops[op.ID] = op.Clone()
	return nil
}

// Get returns a copy of the stored operation or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*orchestrator.BulkOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	return op.Clone(), nil
}

// List returns copies of all operations, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*orchestrator.BulkOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]*orchestrator.BulkOperation, 0, len(s.ops))
	for _, op := range s.ops {
		ops = append(ops, op.Clone())
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].CreatedAt.After(ops[j].CreatedAt) })
	return ops, nil
}

// MarkRunning transitions the operation to running, once.
func (s *MemoryStore) MarkRunning(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	markRunning(op, at)
	return nil
}

// MarkTargetRunning transitions one target result to running.
func (s *MemoryStore) MarkTargetRunning(ctx context.Context, id, targetID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	return markTargetRunning(op, targetID, at)
}

// UpdateTargetResult writes one terminal target result and finalizes the
// operation under the same lock when it was the last outstanding one.
func (s *MemoryStore) UpdateTargetResult(ctx context.Context, id, targetID string, res orchestrator.TargetResult) (*orchestrator.BulkOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	if err := applyTargetResult(op, targetID, res); err != nil {
		return nil, err
	}
	return op.Clone(), nil
}
