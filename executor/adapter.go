package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warezfr/dynatrace-backup-restore-tool/backupcat"
	dtbrhttp "github.com/warezfr/dynatrace-backup-restore-tool/http"
	"github.com/warezfr/dynatrace-backup-restore-tool/inventory"
	"github.com/warezfr/dynatrace-backup-restore-tool/monaco"
	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

// Request options understood by the adapter. ConfigTypes is a
// comma-separated api list defaulting to "all"; BackupID names the catalog
// entry a restore deploys; DryRun ("true") validates without applying;
// SourceEnvID is the environment a compare runs against.
const (
	OptionConfigTypes = "config_types"
	OptionBackupID    = "backup_id"
	OptionDryRun      = "dry_run"
	OptionSourceEnvID = "source_environment_id"
)

// MonacoAdapter performs backup, restore, and compare runs through the
// Monaco CLI wrapper. Every invocation starts with a reachability probe so
// that targets that are down fail fast with a connection reason instead of
// burning a full tool timeout.
type MonacoAdapter struct {
	monaco       *monaco.Service
	backups      *backupcat.Service
	envs         inventory.Reader
	probeTimeout time.Duration
}

// NewMonacoAdapter wires the adapter.
func NewMonacoAdapter(m *monaco.Service, backups *backupcat.Service, envs inventory.Reader) *MonacoAdapter {
	return &MonacoAdapter{
		monaco:       m,
		backups:      backups,
		envs:         envs,
		probeTimeout: 10 * time.Second,
	}
}

// Invoke dispatches on the operation kind.
func (a *MonacoAdapter) Invoke(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor) (*InvokeResult, error) {
	if err := dtbrhttp.Probe(ctx, target.URL, target.InsecureSSL, a.probeTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, err
		}
		return nil, &Failure{Reason: orchestrator.ReasonConnectionFailed, Message: err.Error()}
	}

	env := monaco.Environment{
		Name:        target.Name,
		URL:         target.URL,
		APIToken:    target.APIToken,
		InsecureSSL: target.InsecureSSL,
	}

	switch op.Kind {
	case orchestrator.KindBackup:
		return a.backup(ctx, op, target, env)
	case orchestrator.KindRestore:
		return a.restore(ctx, op, env)
	case orchestrator.KindCompare:
		return a.compare(ctx, op, env)
	default:
		return nil, &Failure{Reason: orchestrator.ReasonInvalidRequest, Message: fmt.Sprintf("unsupported operation kind %q", op.Kind)}
	}
}

func (a *MonacoAdapter) backup(ctx context.Context, op *orchestrator.BulkOperation, target orchestrator.TargetDescriptor, env monaco.Environment) (*InvokeResult, error) {
	apis := configTypes(op.Options)
	res, err := a.monaco.Export(ctx, env, apis)
	if err != nil {
		return nil, mapMonacoError(err)
	}

	record := &backupcat.Backup{
		ID:            uuid.NewString(),
		Name:          filepath.Base(res.Path),
		Path:          res.Path,
		EnvironmentID: target.ID,
		ConfigTypes:   apis,
		SizeBytes:     res.SizeBytes,
		FileCount:     res.FileCount,
		CreatedAt:     time.Now().UTC(),
	}
	// Catalog bookkeeping must not fail the backup itself; the artifact is
	// already on disk.
	_ = a.backups.Record(ctx, record)

	return &InvokeResult{
		Message:    fmt.Sprintf("exported %d files", res.FileCount),
		BackupPath: res.Path,
	}, nil
}

func (a *MonacoAdapter) restore(ctx context.Context, op *orchestrator.BulkOperation, env monaco.Environment) (*InvokeResult, error) {
	backupID := op.Options[OptionBackupID]
	if backupID == "" {
		return nil, &Failure{Reason: orchestrator.ReasonInvalidRequest, Message: "restore requires the backup_id option"}
	}
	b, err := a.backups.Get(ctx, backupID)
	if err != nil {
		if errors.Is(err, backupcat.ErrNotFound) {
			return nil, &Failure{Reason: orchestrator.ReasonInvalidRequest, Message: fmt.Sprintf("unknown backup %s", backupID)}
		}
		return nil, err
	}

	dryRun := op.Options[OptionDryRun] == "true"
	if err := a.monaco.Deploy(ctx, env, b.Path, dryRun); err != nil {
		return nil, mapMonacoError(err)
	}

	msg := fmt.Sprintf("restored backup %s", b.Name)
	if dryRun {
		msg = fmt.Sprintf("validated backup %s (dry run)", b.Name)
	}
	return &InvokeResult{Message: msg, BackupPath: b.Path}, nil
}

func (a *MonacoAdapter) compare(ctx context.Context, op *orchestrator.BulkOperation, env monaco.Environment) (*InvokeResult, error) {
	sourceID := op.Options[OptionSourceEnvID]
	if sourceID == "" {
		return nil, &Failure{Reason: orchestrator.ReasonInvalidRequest, Message: "compare requires the source_environment_id option"}
	}
	source, err := a.envs.GetEnvironment(ctx, sourceID)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			return nil, &Failure{Reason: orchestrator.ReasonInvalidRequest, Message: fmt.Sprintf("unknown source environment %s", sourceID)}
		}
		return nil, err
	}

	res, err := a.monaco.Compare(ctx, monaco.Environment{
		Name:        source.Name,
		URL:         source.URL,
		APIToken:    source.APIToken,
		InsecureSSL: source.InsecureSSL,
	}, env, configTypes(op.Options))
	if err != nil {
		return nil, mapMonacoError(err)
	}

	return &InvokeResult{
		Message: fmt.Sprintf("%d common, %d only in source, %d only in target", res.Common, res.OnlySource, res.OnlyTarget),
		Diff: &orchestrator.DiffSummary{
			Total:      res.Total,
			Common:     res.Common,
			OnlySource: res.OnlySource,
			OnlyTarget: res.OnlyTarget,
		},
	}, nil
}

// mapMonacoError converts tool-level errors into classified failures.
// Context errors pass through untouched so the runner can report timeouts.
func mapMonacoError(err error) error {
	var cmdErr *monaco.CommandError
	if errors.As(err, &cmdErr) {
		return &Failure{
			Reason:   orchestrator.ReasonNonzeroExit,
			Message:  cmdErr.Output,
			ExitCode: cmdErr.ExitCode,
		}
	}
	return err
}

func configTypes(options map[string]string) []string {
	raw := strings.TrimSpace(options[OptionConfigTypes])
	if raw == "" {
		return []string{"all"}
	}
	parts := strings.Split(raw, ",")
	apis := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			apis = append(apis, p)
		}
	}
	if len(apis) == 0 {
		return []string{"all"}
	}
	return apis
}
