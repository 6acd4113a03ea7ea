package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warezfr/dynatrace-backup-restore-tool/common"
)

// Selector names the targets of a request: either an explicit list of
// environment IDs or a group reference, never both.
type Selector struct {
	EnvironmentIDs []string `json:"environment_ids,omitempty"`
	GroupID        string   `json:"group_id,omitempty"`
}

// Request is an accepted bulk operation request.
type Request struct {
	Kind     Kind              `json:"kind"`
	Selector Selector          `json:"selector"`
	Options  map[string]string `json:"options,omitempty"`
}

// Resolver expands a selector into concrete target descriptors. Resolution
// failures (unknown group, empty result) surface as validation errors before
// any operation record is created.
type Resolver interface {
	Resolve(ctx context.Context, sel Selector) ([]TargetDescriptor, error)
}

// Store persists bulk operations and their per-target results.
type Store interface {
	// Create persists a new pending operation. Fails if the ID exists.
	Create(ctx context.Context, op *BulkOperation) error

	// Get returns a snapshot of one operation.
	Get(ctx context.Context, id string) (*BulkOperation, error)

	// List returns snapshots of all retained operations.
	List(ctx context.Context) ([]*BulkOperation, error)

	// MarkRunning transitions the operation pending -> running. The
	// transition fires at most once; repeated calls are no-ops.
	MarkRunning(ctx context.Context, id string, at time.Time) error

	// MarkTargetRunning transitions one pending target result to running.
	MarkTargetRunning(ctx context.Context, id, targetID string, at time.Time) error

	// UpdateTargetResult atomically overwrites one target's terminal result
	// and, when it is the last outstanding one, computes and writes the
	// overall terminal status in the same step. It returns the operation
	// state after the update.
	UpdateTargetResult(ctx context.Context, id, targetID string, res TargetResult) (*BulkOperation, error)
}

// TargetExecutor performs one operation kind against one target and always
// returns a terminal result, never a fault.
type TargetExecutor interface {
	Run(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult
}

// Config for the orchestrator.
type Config struct {
	// MaxInFlight bounds how many targets execute concurrently.
	MaxInFlight int
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{MaxInFlight: 4}
}

// Orchestrator validates requests, creates operation records, dispatches one
// executor per target under a concurrency bound, and finalizes overall
// status through the store.
type Orchestrator struct {
	store    Store
	resolver Resolver
	exec     TargetExecutor
	cfg      Config
	log      *logrus.Entry

	wg sync.WaitGroup
}

// New creates an orchestrator.
func New(store Store, resolver Resolver, exec TargetExecutor, cfg Config) *Orchestrator {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultConfig().MaxInFlight
	}
	return &Orchestrator{
		store:    store,
		resolver: resolver,
		exec:     exec,
		cfg:      cfg,
		log:      common.Logger.WithField("component", "orchestrator"),
	}
}

// Submit validates and accepts a request. On success the created operation
// is returned in pending state and execution proceeds in the background;
// callers poll for progress. Validation and conflict errors are returned
// synchronously and leave no record behind.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*BulkOperation, error) {
	if !req.Kind.Valid() {
		return nil, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown operation kind %q", req.Kind)}
	}

	targets, err := o.resolver.Resolve(ctx, req.Selector)
	if err != nil {
		return nil, err
	}

	op := NewBulkOperation(uuid.NewString(), req.Kind, targetIDs(targets), req.Options)
	if err := o.store.Create(ctx, op); err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"operation": op.ID,
		"kind":      op.Kind,
		"targets":   len(op.Targets),
	}).Info("bulk operation accepted")

	o.wg.Add(1)
	go o.dispatch(op.Clone(), targets)

	return op.Clone(), nil
}

// Wait blocks until all in-flight operations have finished. Used by tests
// and by graceful shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// dispatch runs every target executor under the in-flight bound and lets the
// store finalize the operation when the last result lands. Dispatch is
// detached from the submitting request's context: once accepted, an
// operation runs to completion or to its per-target timeouts.
func (o *Orchestrator) dispatch(op *BulkOperation, targets []TargetDescriptor) {
	defer o.wg.Done()
	ctx := context.Background()

	if err := o.store.MarkRunning(ctx, op.ID, time.Now().UTC()); err != nil {
		o.log.WithError(err).WithField("operation", op.ID).Error("failed to mark operation running")
		o.abort(ctx, op, targets, err)
		return
	}

	sem := make(chan struct{}, o.cfg.MaxInFlight)
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target TargetDescriptor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := o.store.MarkTargetRunning(ctx, op.ID, target.ID, time.Now().UTC()); err != nil {
				o.log.WithError(err).WithFields(logrus.Fields{
					"operation": op.ID, "target": target.ID,
				}).Warn("failed to mark target running")
			}

			res := o.exec.Run(ctx, op, target)
			updated, err := o.store.UpdateTargetResult(ctx, op.ID, target.ID, res)
			if err != nil {
				o.log.WithError(err).WithFields(logrus.Fields{
					"operation": op.ID, "target": target.ID,
				}).Error("failed to record target result")
				return
			}
			if updated.Status.Terminal() {
				o.log.WithFields(logrus.Fields{
					"operation": op.ID,
					"status":    updated.Status,
				}).Info("bulk operation finished")
			}
		}(target)
	}
	wg.Wait()
}

// abort writes a failed terminal result for every target so the operation
// reaches a terminal status instead of staying pending forever. Callers that
// poll the status endpoint would otherwise never see it finish.
func (o *Orchestrator) abort(ctx context.Context, op *BulkOperation, targets []TargetDescriptor, cause error) {
	now := time.Now().UTC()
	for _, target := range targets {
		res := TargetResult{
			Status: TargetFailed,
			Detail: ResultDetail{
				Reason:  ReasonInternalError,
				Message: fmt.Sprintf("operation could not be started: %v", cause),
			},
			StartedAt:  &now,
			FinishedAt: &now,
		}
		if _, err := o.store.UpdateTargetResult(ctx, op.ID, target.ID, res); err != nil {
			o.log.WithError(err).WithFields(logrus.Fields{
				"operation": op.ID, "target": target.ID,
			}).Error("failed to record aborted target")
		}
	}
}

func targetIDs(targets []TargetDescriptor) []string {
	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	return ids
}
