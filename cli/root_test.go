package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warezfr/dynatrace-backup-restore-tool/config"
)

func TestApplyFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("port", 0, "")
	cmd.Flags().String("state-path", "", "")
	cmd.Flags().String("monaco-path", "", "")
	cmd.Flags().String("backup-dir", "", "")
	require.NoError(t, cmd.Flags().Set("port", "9191"))
	require.NoError(t, cmd.Flags().Set("monaco-path", "/opt/monaco"))

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		State:  config.StateConfig{Path: "./operations.db"},
		Monaco: config.MonacoConfig{CLIPath: "monaco", BackupDir: "./backups"},
	}
	applyFlagOverrides(cmd, cfg)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "/opt/monaco", cfg.Monaco.CLIPath)
	// Flags left untouched keep the configured values.
	assert.Equal(t, "./operations.db", cfg.State.Path)
	assert.Equal(t, "./backups", cfg.Monaco.BackupDir)
}
