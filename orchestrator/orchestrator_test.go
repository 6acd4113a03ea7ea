package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-package Store used to drive the orchestrator
// without pulling in a persistence package.
type fakeStore struct {
	mu  sync.Mutex
	ops map[string]*BulkOperation

	creates         int
	failMarkRunning bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{ops: make(map[string]*BulkOperation)}
}

func (s *fakeStore) Create(ctx context.Context, op *BulkOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ops[op.ID]; ok {
		return fmt.Errorf("operation %s exists", op.ID)
	}
	s.creates++
	s.ops[op.ID] = op.Clone()
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*BulkOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return op.Clone(), nil
}

func (s *fakeStore) List(ctx context.Context) ([]*BulkOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*BulkOperation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op.Clone())
	}
	return out, nil
}

func (s *fakeStore) MarkRunning(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkRunning {
		return errors.New("store unavailable")
	}
	op, ok := s.ops[id]
	if !ok {
		return errors.New("not found")
	}
	if op.Status == StatusPending {
		op.Status = StatusRunning
		op.StartedAt = &at
	}
	return nil
}

func (s *fakeStore) MarkTargetRunning(ctx context.Context, id, targetID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return errors.New("not found")
	}
	res, ok := op.Results[targetID]
	if !ok {
		return errors.New("unknown target")
	}
	if res.Status == TargetPending {
		res.Status = TargetRunning
		res.StartedAt = &at
	}
	return nil
}

func (s *fakeStore) UpdateTargetResult(ctx context.Context, id, targetID string, res TargetResult) (*BulkOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, errors.New("not found")
	}
	if _, ok := op.Results[targetID]; !ok {
		return nil, errors.New("unknown target")
	}
	res.TargetID = targetID
	op.Results[targetID] = &res
	if !op.Status.Terminal() && op.AllTerminal() {
		now := time.Now().UTC()
		op.Status = op.TerminalStatus()
		op.FinishedAt = &now
	}
	return op.Clone(), nil
}

// staticResolver returns a fixed target list for any selector.
type staticResolver struct {
	targets []TargetDescriptor
	err     error
}

func (r *staticResolver) Resolve(ctx context.Context, sel Selector) ([]TargetDescriptor, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.targets, nil
}

// funcExecutor delegates to a closure per target.
type funcExecutor struct {
	fn func(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult
}

func (e *funcExecutor) Run(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult {
	return e.fn(ctx, op, target)
}

func descriptors(ids ...string) []TargetDescriptor {
	out := make([]TargetDescriptor, len(ids))
	for i, id := range ids {
		out[i] = TargetDescriptor{ID: id, Name: id, URL: "https://" + id + ".example.com"}
	}
	return out
}

func succeedOrFail(failing map[string]string) func(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult {
	return func(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult {
		now := time.Now().UTC()
		if reason, ok := failing[target.ID]; ok {
			return TargetResult{
				TargetID:   target.ID,
				Status:     TargetFailed,
				Detail:     ResultDetail{Reason: reason, Message: "induced failure"},
				FinishedAt: &now,
			}
		}
		return TargetResult{
			TargetID:   target.ID,
			Status:     TargetSucceeded,
			Detail:     ResultDetail{BackupPath: "/backups/" + target.ID},
			FinishedAt: &now,
		}
	}
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	store := newFakeStore()
	orch := New(store, &staticResolver{targets: descriptors("a")}, &funcExecutor{}, Config{})

	_, err := orch.Submit(context.Background(), Request{Kind: Kind("defrag")})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)
	assert.Zero(t, store.creates, "rejected request must not create a record")
}

func TestSubmitPropagatesResolverError(t *testing.T) {
	store := newFakeStore()
	resolverErr := &ValidationError{Field: "selector", Reason: "unknown group"}
	orch := New(store, &staticResolver{err: resolverErr}, &funcExecutor{}, Config{})

	_, err := orch.Submit(context.Background(), Request{Kind: KindBackup})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, store.creates)
}

func TestSubmitReturnsPendingOperation(t *testing.T) {
	store := newFakeStore()
	block := make(chan struct{})
	exec := &funcExecutor{fn: func(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult {
		<-block
		return succeedOrFail(nil)(ctx, op, target)
	}}
	orch := New(store, &staticResolver{targets: descriptors("a", "b")}, exec, Config{})

	op, err := orch.Submit(context.Background(), Request{Kind: KindBackup, Selector: Selector{GroupID: "g"}})
	require.NoError(t, err)

	assert.NotEmpty(t, op.ID)
	assert.Equal(t, StatusPending, op.Status)
	assert.ElementsMatch(t, []string{"a", "b"}, op.Targets)
	require.Len(t, op.Results, 2)
	for _, res := range op.Results {
		assert.Equal(t, TargetPending, res.Status)
	}

	close(block)
	orch.Wait()
}

func TestPartialFailureCompletesWithErrors(t *testing.T) {
	store := newFakeStore()
	exec := &funcExecutor{fn: succeedOrFail(map[string]string{"b": ReasonNonzeroExit})}
	orch := New(store, &staticResolver{targets: descriptors("a", "b", "c")}, exec, Config{})

	op, err := orch.Submit(context.Background(), Request{Kind: KindBackup, Selector: Selector{GroupID: "g"}})
	require.NoError(t, err)
	orch.Wait()

	final, err := store.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompletedWithErrors, final.Status)
	require.NotNil(t, final.FinishedAt)

	assert.Equal(t, TargetSucceeded, final.Results["a"].Status)
	assert.Equal(t, TargetFailed, final.Results["b"].Status)
	assert.Equal(t, ReasonNonzeroExit, final.Results["b"].Detail.Reason)
	assert.Equal(t, TargetSucceeded, final.Results["c"].Status)
}

func TestAllFailuresFailOperation(t *testing.T) {
	store := newFakeStore()
	exec := &funcExecutor{fn: succeedOrFail(map[string]string{
		"a": ReasonTimeout,
		"b": ReasonConnectionFailed,
	})}
	orch := New(store, &staticResolver{targets: descriptors("a", "b")}, exec, Config{})

	op, err := orch.Submit(context.Background(), Request{Kind: KindRestore, Selector: Selector{GroupID: "g"}})
	require.NoError(t, err)
	orch.Wait()

	final, err := store.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, ReasonTimeout, final.Results["a"].Detail.Reason)
	assert.Equal(t, ReasonConnectionFailed, final.Results["b"].Detail.Reason)
}

func TestMarkRunningFailureFailsOperation(t *testing.T) {
	store := newFakeStore()
	store.failMarkRunning = true
	exec := &funcExecutor{fn: succeedOrFail(nil)}
	orch := New(store, &staticResolver{targets: descriptors("a", "b")}, exec, Config{})

	op, err := orch.Submit(context.Background(), Request{Kind: KindBackup, Selector: Selector{GroupID: "g"}})
	require.NoError(t, err)
	orch.Wait()

	final, err := store.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, final.Status, "a poller must see a terminal status, not pending forever")
	require.NotNil(t, final.FinishedAt)
	for _, id := range []string{"a", "b"} {
		assert.Equal(t, TargetFailed, final.Results[id].Status)
		assert.Equal(t, ReasonInternalError, final.Results[id].Detail.Reason)
		assert.Contains(t, final.Results[id].Detail.Message, "could not be started")
	}
}

func TestDispatchHonorsMaxInFlight(t *testing.T) {
	const limit = 2
	var inFlight, peak int64

	store := newFakeStore()
	exec := &funcExecutor{fn: func(ctx context.Context, op *BulkOperation, target TargetDescriptor) TargetResult {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return succeedOrFail(nil)(ctx, op, target)
	}}
	orch := New(store, &staticResolver{targets: descriptors("a", "b", "c", "d", "e", "f")}, exec, Config{MaxInFlight: limit})

	_, err := orch.Submit(context.Background(), Request{Kind: KindBackup, Selector: Selector{GroupID: "g"}})
	require.NoError(t, err)
	orch.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
}

func TestReporterProgress(t *testing.T) {
	store := newFakeStore()
	op := NewBulkOperation("op-progress", KindBackup, []string{"a", "b", "c", "d"}, nil)
	require.NoError(t, store.Create(context.Background(), op))
	reporter := NewReporter(store)

	snap, err := reporter.Snapshot(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ProgressPercent)
	assert.Equal(t, StatusPending, snap.Status)

	now := time.Now().UTC()
	_, err = store.UpdateTargetResult(context.Background(), op.ID, "a", TargetResult{Status: TargetSucceeded, FinishedAt: &now})
	require.NoError(t, err)

	snap, err = reporter.Snapshot(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, snap.ProgressPercent)

	for _, id := range []string{"b", "c", "d"} {
		_, err = store.UpdateTargetResult(context.Background(), op.ID, id, TargetResult{Status: TargetFailed, Detail: ResultDetail{Reason: ReasonTimeout}, FinishedAt: &now})
		require.NoError(t, err)
	}

	snap, err = reporter.Snapshot(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.ProgressPercent)
	assert.Equal(t, StatusCompletedWithErrors, snap.Status)
	assert.Equal(t, ReasonTimeout, snap.Results["b"].Detail.Reason)
}

func TestReporterUnknownOperation(t *testing.T) {
	reporter := NewReporter(newFakeStore())
	_, err := reporter.Snapshot(context.Background(), "missing")
	assert.Error(t, err)
}
