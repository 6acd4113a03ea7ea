// Package executor runs exactly one operation against exactly one target
// environment and classifies the outcome. The Runner is a failure boundary:
// whatever the adapter does, including panicking, the caller always receives
// a terminal TargetResult and never a fault.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warezfr/dynatrace-backup-restore-tool/common"
	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

// InvokeResult is the successful outcome of one adapter invocation.
type InvokeResult struct {
	// Message summarizes the outcome for humans.
	Message string

	// BackupPath is the produced artifact directory, for backups.
	BackupPath string

	// Diff is the comparison summary, for compare operations.
	Diff *orchestrator.DiffSummary
}

// Failure is a classified adapter failure with a machine-readable reason.
type Failure struct {
	Reason   string
	Message  string
	ExitCode int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Message)
}

// Adapter performs one operation kind against one target via the external
// configuration tool. Recognized failures are reported as *Failure; anything
// else counts as an internal error of the adapter.
type Adapter interface {
	Invoke(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error)
}

// Config for the runner.
type Config struct {
	// Timeout bounds one adapter invocation wall-clock time.
	Timeout time.Duration
}

// DefaultConfig returns runner defaults.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Minute}
}

// Runner executes single targets through an adapter under a bounded timeout.
type Runner struct {
	adapter Adapter
	cfg     Config
	log     *logrus.Entry
}

// NewRunner creates a runner around the given adapter.
func NewRunner(adapter Adapter, cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Runner{
		adapter: adapter,
		cfg:     cfg,
		log:     common.Logger.WithField("component", "executor"),
	}
}

// Run performs op.Kind against the target and always returns a terminal
// result. Timeouts are failures, not retried; retry policy belongs to the
// caller.
func (r *Runner) Run(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (res orchestrator.TargetResult) {
	started := time.Now().UTC()
	res = orchestrator.TargetResult{
		TargetID:  target.ID,
		Status:    orchestrator.TargetRunning,
		StartedAt: &started,
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.WithFields(logrus.Fields{
				"operation": op.ID, "target": target.ID, "panic": p,
			}).Error("adapter panicked")
			res.Status = orchestrator.TargetFailed
			res.Detail = orchestrator.ResultDetail{
				Reason:  orchestrator.ReasonInternalError,
				Message: fmt.Sprintf("unexpected fault: %v", p),
			}
		}
		finished := time.Now().UTC()
		res.FinishedAt = &finished
	}()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	out, err := r.adapter.Invoke(ctx, op, target)
	if err != nil {
		res.Status = orchestrator.TargetFailed
		res.Detail = classify(ctx, err)
		r.log.WithFields(logrus.Fields{
			"operation": op.ID,
			"target":    target.ID,
			"reason":    res.Detail.Reason,
		}).Warn("target execution failed")
		return res
	}

	res.Status = orchestrator.TargetSucceeded
	res.Detail = orchestrator.ResultDetail{
		Message:    out.Message,
		BackupPath: out.BackupPath,
		Diff:       out.Diff,
	}
	return res
}

// classify maps an adapter error onto the failure taxonomy. Deadline
// expiry wins over whatever error the interrupted tool reported.
func classify(ctx context.Context, err error) orchestrator.ResultDetail {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return orchestrator.ResultDetail{
			Reason:  orchestrator.ReasonTimeout,
			Message: "operation timed out",
		}
	}
	var failure *Failure
	if errors.As(err, &failure) {
		return orchestrator.ResultDetail{
			Reason:   failure.Reason,
			Message:  failure.Message,
			ExitCode: failure.ExitCode,
		}
	}
	return orchestrator.ResultDetail{
		Reason:  orchestrator.ReasonInternalError,
		Message: err.Error(),
	}
}
