// Package cli provides the command-line interface for the backup service.
// The root command starts the HTTP API server; subcommands cover one-shot
// maintenance tasks such as printing version information.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warezfr/dynatrace-backup-restore-tool/api"
	"github.com/warezfr/dynatrace-backup-restore-tool/backupcat"
	"github.com/warezfr/dynatrace-backup-restore-tool/common"
	"github.com/warezfr/dynatrace-backup-restore-tool/config"
	"github.com/warezfr/dynatrace-backup-restore-tool/executor"
	httpserver "github.com/warezfr/dynatrace-backup-restore-tool/http"
	"github.com/warezfr/dynatrace-backup-restore-tool/inventory"
	"github.com/warezfr/dynatrace-backup-restore-tool/monaco"
	"github.com/warezfr/dynatrace-backup-restore-tool/orchestrator"
	"github.com/warezfr/dynatrace-backup-restore-tool/statestore"
)

// cfgFile holds the path to the configuration file specified via the
// --config flag. When empty the loader searches the default locations.
var cfgFile string

// RootCmd is the entry point of the CLI. Running it without a subcommand
// starts the API server.
var RootCmd = &cobra.Command{
	Use:   "dtbr",
	Short: "bulk backup, restore and compare of Dynatrace environment configuration",
	Long: `Dynatrace backup/restore service

An HTTP API server that orchestrates bulk configuration operations across
registered Dynatrace environments by driving the Monaco CLI:
- backup downloads configuration into a local backup catalog
- restore deploys a cataloged backup to selected environments
- compare diffs the configuration of two environments

Operations run asynchronously with bounded concurrency and per-environment
failure isolation; progress is polled over the API.`,
	RunE: runServer,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, ./configs, $HOME/.dtbr, /etc/dtbr)")
	RootCmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	RootCmd.Flags().String("state-path", "", "bolt database for operation state (overrides config)")
	RootCmd.Flags().String("monaco-path", "", "path to the monaco binary (overrides config)")
	RootCmd.Flags().String("backup-dir", "", "directory for backup archives (overrides config)")
	RootCmd.SilenceUsage = true
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	common.ConfigureLogger(common.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	log := common.Logger

	// Operation state: bolt on disk, or in memory when no path is set.
	var ops orchestrator.Store
	if cfg.State.Path != "" {
		boltStore, err := statestore.OpenBolt(cfg.State.Path)
		if err != nil {
			return err
		}
		defer boltStore.Close()
		ops = boltStore
		log.WithField("path", cfg.State.Path).Info("operation state store opened")
	} else {
		ops = statestore.NewMemory()
		log.Warn("no state path configured, operation state is kept in memory")
	}

	// Environment inventory and backup catalog share one database. A DSN
	// selects PostgreSQL, otherwise a local SQLite file is used.
	var envs inventory.Store
	var backupStore backupcat.Store
	switch {
	case cfg.Database.DSN != "":
		gormStore, err := inventory.OpenPostgres(cfg.Database.DSN)
		if err != nil {
			return err
		}
		envs = gormStore
		backupStore, err = backupcat.NewGorm(gormStore.DB())
		if err != nil {
			return err
		}
		log.Info("catalog database connected")
	case cfg.Database.Path != "":
		gormStore, err := inventory.OpenSQLite(cfg.Database.Path)
		if err != nil {
			return err
		}
		envs = gormStore
		backupStore, err = backupcat.NewGorm(gormStore.DB())
		if err != nil {
			return err
		}
		log.WithField("path", cfg.Database.Path).Info("catalog database opened")
	default:
		envs = inventory.NewMemory()
		backupStore = backupcat.NewMemory()
		log.Warn("no catalog database configured, catalogs are kept in memory")
	}
	backups := backupcat.NewService(backupStore)

	monacoSvc, err := monaco.New(monaco.Config{
		CLIPath:   cfg.Monaco.CLIPath,
		BackupDir: cfg.Monaco.BackupDir,
	})
	if err != nil {
		return err
	}
	if v, err := monacoSvc.Version(cmd.Context()); err != nil {
		log.WithError(err).Warn("monaco CLI not available, operations will fail until it is installed")
	} else {
		log.WithField("version", v).Info("monaco CLI detected")
	}

	adapter := executor.NewMonacoAdapter(monacoSvc, backups, envs)
	runner := executor.NewRunner(adapter, executor.Config{Timeout: cfg.Monaco.Timeout})
	resolver := inventory.NewResolver(envs)
	orch := orchestrator.New(ops, resolver, runner, orchestrator.Config{
		MaxInFlight: cfg.Orchestrator.MaxInFlight,
	})
	reporter := orchestrator.NewReporter(ops)

	serverCfg := httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Debug:           cfg.Server.Debug,
		BodyLimit:       cfg.Server.BodyLimit,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
	}
	e := httpserver.NewEchoServer(serverCfg)
	e.GET("/health", httpserver.HealthCheckHandler(cfg.Service.Name, cfg.Service.Version))

	handlers := api.New(orch, reporter, ops, envs, backups)
	handlers.RegisterRoutes(e.Group("/api"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpserver.StartServer(ctx, e, serverCfg); err != nil {
		return err
	}

	// Let in-flight operations record their results before the state
	// store closes.
	log.Info("waiting for running operations to finish")
	orch.Wait()
	return nil
}

// applyFlagOverrides lets command-line flags win over config file and
// environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("state-path") {
		cfg.State.Path, _ = cmd.Flags().GetString("state-path")
	}
	if cmd.Flags().Changed("monaco-path") {
		cfg.Monaco.CLIPath, _ = cmd.Flags().GetString("monaco-path")
	}
	if cmd.Flags().Changed("backup-dir") {
		cfg.Monaco.BackupDir, _ = cmd.Flags().GetString("backup-dir")
	}
}
