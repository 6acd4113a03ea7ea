package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warezfr/dynatrace-backup-restore-tool/backupcat"
	"github.com/warezfr/dynatrace-backup-restore-tool/inventory"
	"github.com/warezfr/dynatrace-backup-restore-tool/monaco"
	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
)

// fakeMonaco writes a stub monaco binary that records its arguments and
// produces a minimal export tree, so adapter flows run without the real CLI.
func fakeMonaco(t *testing.T) *monaco.Service {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "monaco")
	// The stub succeeds for every subcommand and drops one file into the
	// --output-folder argument when present.
	stub := `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output-folder" ]; then out="$arg"; fi
  prev="$arg"
done
if [ -n "$out" ]; then
  mkdir -p "$out/project"
  echo '{}' > "$out/project/config.json"
fi
exit 0
`
	require.NoError(t, os.WriteFile(script, []byte(stub), 0755))

	svc, err := monaco.New(monaco.Config{CLIPath: script, BackupDir: filepath.Join(dir, "backups")})
	require.NoError(t, err)
	return svc
}

func newTestAdapter(t *testing.T) (*MonacoAdapter, *backupcat.Service, *inventory.MemoryStore) {
	t.Helper()
	backups := backupcat.NewService(backupcat.NewMemory())
	envs := inventory.NewMemory()
	return NewMonacoAdapter(fakeMonaco(t), backups, envs), backups, envs
}

func reachableTarget(t *testing.T) orchestrator.TargetDescriptor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return orchestrator.TargetDescriptor{ID: "env-1", Name: "env-1", URL: srv.URL, APIToken: "tok"}
}

func TestInvokeUnreachableTarget(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)
	op := orchestrator.NewBulkOperation("op", orchestrator.KindBackup, []string{"env-1"}, nil)
	target := orchestrator.TargetDescriptor{ID: "env-1", URL: "http://127.0.0.1:1"}

	_, err := adapter.Invoke(context.Background(), op, target)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, orchestrator.ReasonConnectionFailed, failure.Reason)
}

func TestInvokeBackupRecordsCatalogEntry(t *testing.T) {
	adapter, backups, _ := newTestAdapter(t)
	op := orchestrator.NewBulkOperation("op", orchestrator.KindBackup, []string{"env-1"}, map[string]string{
		OptionConfigTypes: "alerting-profile, dashboard",
	})

	res, err := adapter.Invoke(context.Background(), op, reachableTarget(t))
	require.NoError(t, err)
	assert.NotEmpty(t, res.BackupPath)
	assert.FileExists(t, filepath.Join(res.BackupPath, "project", "config.json"))

	list, err := backups.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "env-1", list[0].EnvironmentID)
	assert.Equal(t, []string{"alerting-profile", "dashboard"}, list[0].ConfigTypes)
	assert.Equal(t, res.BackupPath, list[0].Path)
}

func TestInvokeRestoreRequiresBackupID(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)
	op := orchestrator.NewBulkOperation("op", orchestrator.KindRestore, []string{"env-1"}, nil)

	_, err := adapter.Invoke(context.Background(), op, reachableTarget(t))

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, orchestrator.ReasonInvalidRequest, failure.Reason)
}

func TestInvokeRestoreUnknownBackup(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)
	op := orchestrator.NewBulkOperation("op", orchestrator.KindRestore, []string{"env-1"}, map[string]string{
		OptionBackupID: "no-such-backup",
	})

	_, err := adapter.Invoke(context.Background(), op, reachableTarget(t))

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, orchestrator.ReasonInvalidRequest, failure.Reason)
	assert.Contains(t, failure.Message, "no-such-backup")
}

func TestInvokeRestoreDeploysCatalogedBackup(t *testing.T) {
	adapter, backups, _ := newTestAdapter(t)

	backupDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(backupDir, "project"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "project", "config.json"), []byte("{}"), 0644))
	require.NoError(t, backups.Record(context.Background(), &backupcat.Backup{
		ID:   "b-1",
		Name: "backup_all",
		Path: backupDir,
	}))

	op := orchestrator.NewBulkOperation("op", orchestrator.KindRestore, []string{"env-1"}, map[string]string{
		OptionBackupID: "b-1",
	})

	res, err := adapter.Invoke(context.Background(), op, reachableTarget(t))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "backup_all")
	assert.Equal(t, backupDir, res.BackupPath)
	// Deploy writes its manifest next to the backup content.
	assert.FileExists(t, filepath.Join(backupDir, "manifest.yaml"))
}

func TestInvokeCompareRequiresSource(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)
	op := orchestrator.NewBulkOperation("op", orchestrator.KindCompare, []string{"env-1"}, nil)

	_, err := adapter.Invoke(context.Background(), op, reachableTarget(t))

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, orchestrator.ReasonInvalidRequest, failure.Reason)
}

func TestInvokeCompareUnknownSource(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)
	op := orchestrator.NewBulkOperation("op", orchestrator.KindCompare, []string{"env-1"}, map[string]string{
		OptionSourceEnvID: "ghost",
	})

	_, err := adapter.Invoke(context.Background(), op, reachableTarget(t))

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, orchestrator.ReasonInvalidRequest, failure.Reason)
}

func TestInvokeCompare(t *testing.T) {
	adapter, _, envs := newTestAdapter(t)
	require.NoError(t, envs.CreateEnvironment(context.Background(), &inventory.Environment{
		ID: "src-1", Name: "source", URL: "https://src.example.com", APIToken: "tok", IsActive: true,
	}))

	op := orchestrator.NewBulkOperation("op", orchestrator.KindCompare, []string{"env-1"}, map[string]string{
		OptionSourceEnvID: "src-1",
	})

	res, err := adapter.Invoke(context.Background(), op, reachableTarget(t))
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	// The stub exports the same single file for both sides.
	assert.Equal(t, 1, res.Diff.Total)
	assert.Equal(t, 1, res.Diff.Common)
	assert.Zero(t, res.Diff.OnlySource)
	assert.Zero(t, res.Diff.OnlyTarget)
}

func TestConfigTypes(t *testing.T) {
	tests := []struct {
		name     string
		options  map[string]string
		expected []string
	}{
		{name: "nil options", options: nil, expected: []string{"all"}},
		{name: "empty value", options: map[string]string{OptionConfigTypes: ""}, expected: []string{"all"}},
		{name: "only separators", options: map[string]string{OptionConfigTypes: " , ,"}, expected: []string{"all"}},
		{name: "single", options: map[string]string{OptionConfigTypes: "dashboard"}, expected: []string{"dashboard"}},
		{name: "list with spaces", options: map[string]string{OptionConfigTypes: "dashboard, alerting-profile"}, expected: []string{"dashboard", "alerting-profile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, configTypes(tt.options))
		})
	}
}
