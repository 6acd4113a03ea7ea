package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

const operationsBucket = "operations"

// BoltStore persists operations in a bbolt database, one JSON document per
// operation with its target results embedded. Every method runs in a single
// bbolt transaction, which gives UpdateTargetResult its required atomicity:
// two near-simultaneous completions serialize on the database write lock and
// only the later one observes a fully terminal result set.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the operation database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open operation database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(operationsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", operationsBucket, err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Create persists a new operation, failing with ErrConflict on duplicates.
func (s *BoltStore) Create(ctx context.Context, op *orchestrator.BulkOperation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(operationsBucket))
		if b.Get([]byte(op.ID)) != nil {
			return fmt.Errorf("operation %s: %w", op.ID, ErrConflict)
		}
		return putOperation(b, op)
	})
}

// Get returns the stored operation or ErrNotFound.
func (s *BoltStore) Get(ctx context.Context, id string) (*orchestrator.BulkOperation, error) {
	var op *orchestrator.BulkOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		op, err = getOperation(tx.Bucket([]byte(operationsBucket)), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// List returns all retained operations, newest first.
func (s *BoltStore) List(ctx context.Context) ([]*orchestrator.BulkOperation, error) {
	var ops []*orchestrator.BulkOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(operationsBucket)).ForEach(func(k, v []byte) error {
			op := &orchestrator.BulkOperation{}
			if err := json.Unmarshal(v, op); err != nil {
				return fmt.Errorf("failed to unmarshal operation %s: %w", k, err)
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].CreatedAt.After(ops[j].CreatedAt) })
	return ops, nil
}

// MarkRunning transitions the operation to running, once.
func (s *BoltStore) MarkRunning(ctx context.Context, id string, at time.Time) error {
	return s.update(id, func(op *orchestrator.BulkOperation) error {
		markRunning(op, at)
		return nil
	})
}

// MarkTargetRunning transitions one target result to running.
func (s *BoltStore) MarkTargetRunning(ctx context.Context, id, targetID string, at time.Time) error {
	return s.update(id, func(op *orchestrator.BulkOperation) error {
		return markTargetRunning(op, targetID, at)
	})
}

// UpdateTargetResult writes one terminal target result and finalizes the
// operation in the same transaction when it was the last outstanding one.
func (s *BoltStore) UpdateTargetResult(ctx context.Context, id, targetID string, res orchestrator.TargetResult) (*orchestrator.BulkOperation, error) {
	var updated *orchestrator.BulkOperation
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(operationsBucket))
		op, err := getOperation(b, id)
		if err != nil {
			return err
		}
		if err := applyTargetResult(op, targetID, res); err != nil {
			return err
		}
		if err := putOperation(b, op); err != nil {
			return err
		}
		updated = op
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *BoltStore) update(id string, mutate func(op *orchestrator.BulkOperation) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(operationsBucket))
		op, err := getOperation(b, id)
		if err != nil {
			return err
		}
		if err := mutate(op); err != nil {
			return err
		}
		return putOperation(b, op)
	})
}

func getOperation(b *bolt.Bucket, id string) (*orchestrator.BulkOperation, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	op := &orchestrator.BulkOperation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation %s: %w", id, err)
	}
	return op, nil
}

func putOperation(b *bolt.Bucket, op *orchestrator.BulkOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation %s: %w", op.ID, err)
	}
	return b.Put([]byte(op.ID), data)
}
