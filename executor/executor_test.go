package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

type adapterFunc func(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error)

func (f adapterFunc) Invoke(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
	return f(ctx, op, target)
}

func testOperation() *orchestrator.BulkOperation {
	return orchestrator.NewBulkOperation("op-1", orchestrator.KindBackup, []string{"env-1"}, nil)
}

func testTarget() orchestrator.TargetDescriptor {
	return orchestrator.TargetDescriptor{ID: "env-1", Name: "env-1", URL: "https://env-1.example.com"}
}

func TestRunSuccess(t *testing.T) {
	r := NewRunner(adapterFunc(func(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
		return &InvokeResult{Message: "exported 42 configs", BackupPath: "/backups/env-1"}, nil
	}), Config{})

	res := r.Run(context.Background(), testOperation(), testTarget())

	assert.Equal(t, orchestrator.TargetSucceeded, res.Status)
	assert.Equal(t, "env-1", res.TargetID)
	assert.Equal(t, "/backups/env-1", res.Detail.BackupPath)
	assert.Empty(t, res.Detail.Reason)
	require.NotNil(t, res.StartedAt)
	require.NotNil(t, res.FinishedAt)
	assert.False(t, res.FinishedAt.Before(*res.StartedAt))
}

func TestRunClassifiesFailure(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectReason string
		expectExit   int
	}{
		{
			name:         "recognized tool failure",
			err:          &Failure{Reason: orchestrator.ReasonNonzeroExit, Message: "monaco exited with status 2", ExitCode: 2},
			expectReason: orchestrator.ReasonNonzeroExit,
			expectExit:   2,
		},
		{
			name:         "wrapped tool failure",
			err:          errors.New("deploy: " + (&Failure{Reason: orchestrator.ReasonConnectionFailed, Message: "refused"}).Error()),
			expectReason: orchestrator.ReasonInternalError,
		},
		{
			name:         "connection failure",
			err:          &Failure{Reason: orchestrator.ReasonConnectionFailed, Message: "environment unreachable"},
			expectReason: orchestrator.ReasonConnectionFailed,
		},
		{
			name:         "unclassified error",
			err:          errors.New("something odd"),
			expectReason: orchestrator.ReasonInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(adapterFunc(func(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
				return nil, tt.err
			}), Config{})

			res := r.Run(context.Background(), testOperation(), testTarget())

			assert.Equal(t, orchestrator.TargetFailed, res.Status)
			assert.Equal(t, tt.expectReason, res.Detail.Reason)
			assert.Equal(t, tt.expectExit, res.Detail.ExitCode)
			assert.NotNil(t, res.FinishedAt)
		})
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewRunner(adapterFunc(func(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), Config{Timeout: 10 * time.Millisecond})

	res := r.Run(context.Background(), testOperation(), testTarget())

	assert.Equal(t, orchestrator.TargetFailed, res.Status)
	assert.Equal(t, orchestrator.ReasonTimeout, res.Detail.Reason)
}

func TestRunTimeoutWinsOverToolError(t *testing.T) {
	// A tool killed by the deadline reports its own error; the deadline is
	// still the cause that gets recorded.
	r := NewRunner(adapterFunc(func(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
		<-ctx.Done()
		return nil, &Failure{Reason: orchestrator.ReasonNonzeroExit, Message: "signal: killed", ExitCode: -1}
	}), Config{Timeout: 10 * time.Millisecond})

	res := r.Run(context.Background(), testOperation(), testTarget())

	assert.Equal(t, orchestrator.ReasonTimeout, res.Detail.Reason)
}

func TestRunRecoversPanic(t *testing.T) {
	r := NewRunner(adapterFunc(func(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
		panic("adapter bug")
	}), Config{})

	res := r.Run(context.Background(), testOperation(), testTarget())

	assert.Equal(t, orchestrator.TargetFailed, res.Status)
	assert.Equal(t, orchestrator.ReasonInternalError, res.Detail.Reason)
	assert.Contains(t, res.Detail.Message, "adapter bug")
	assert.NotNil(t, res.FinishedAt)
}

func TestDefaultTimeoutApplied(t *testing.T) {
	r := NewRunner(adapterFunc(nil), Config{Timeout: 0})
	assert.Equal(t, DefaultConfig().Timeout, r.cfg.Timeout)
}
