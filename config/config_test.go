package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "dtbr", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "./operations.db", cfg.State.Path)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, "./catalog.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "monaco", cfg.Monaco.CLIPath)
	assert.Equal(t, 10*time.Minute, cfg.Monaco.Timeout)
	assert.Equal(t, 4, cfg.Orchestrator.MaxInFlight)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  debug: true
monaco:
  cli_path: /usr/local/bin/monaco
  timeout: 5m
orchestrator:
  max_in_flight: 8
state:
  path: /var/lib/dtbr/ops.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "/usr/local/bin/monaco", cfg.Monaco.CLIPath)
	assert.Equal(t, 5*time.Minute, cfg.Monaco.Timeout)
	assert.Equal(t, 8, cfg.Orchestrator.MaxInFlight)
	assert.Equal(t, "/var/lib/dtbr/ops.db", cfg.State.Path)
	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DTBR_SERVER_PORT", "7070")
	t.Setenv("DTBR_MONACO_BACKUP_DIR", "/srv/backups")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/srv/backups", cfg.Monaco.BackupDir)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: 8080},
			Monaco:       MonacoConfig{Timeout: time.Minute},
			Orchestrator: OrchestratorConfig{MaxInFlight: 4},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Monaco.Timeout = 0 }, wantErr: true},
		{name: "negative max in flight", mutate: func(c *Config) { c.Orchestrator.MaxInFlight = -1 }, wantErr: true},
		{name: "zero max in flight is allowed", mutate: func(c *Config) { c.Orchestrator.MaxInFlight = 0 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
