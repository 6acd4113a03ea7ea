// Package monaco wraps the Monaco CLI (Dynatrace configuration as code) for
// per-environment export and deploy runs. The wrapper is deliberately
// opaque about Monaco's behavior: it builds the command line, hands the API
// token over through a one-shot environment variable, and reports exit
// status plus captured output back to the caller.
package monaco

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warezfr/dynatrace-backup-restore-tool/common"
)

// Config for the CLI wrapper.
type Config struct {
	// CLIPath is the monaco executable path or name.
	CLIPath string

	// BackupDir is where export runs place their output directories.
	BackupDir string
}

// DefaultConfig returns wrapper defaults.
func DefaultConfig() Config {
	return Config{CLIPath: "monaco", BackupDir: "./backups"}
}

// Environment carries the connection parameters for one Monaco run.
type Environment struct {
	Name        string
	URL         string
	APIToken    string
	InsecureSSL bool
}

// CommandError reports a Monaco run that started but exited nonzero.
type CommandError struct {
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("monaco exited with code %d: %s", e.ExitCode, e.Output)
}

// ExportResult describes a completed export run.
type ExportResult struct {
	Path      string
	SizeBytes int64
	FileCount int
}

// CompareResult is the identity-level difference between two exported
// configuration sets, keyed by relative file path.
type CompareResult struct {
	Total      int
	Common     int
	OnlySource int
	OnlyTarget int
}

// Service executes Monaco CLI commands.
type Service struct {
	cfg Config
	log *logrus.Entry
}

// New creates a Monaco wrapper and ensures the backup directory exists.
func New(cfg Config) (*Service, error) {
	if cfg.CLIPath == "" {
		cfg.CLIPath = DefaultConfig().CLIPath
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = DefaultConfig().BackupDir
	}
	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}
	return &Service{cfg: cfg, log: common.Logger.WithField("component", "monaco")}, nil
}

// Version probes CLI availability.
func (s *Service) Version(ctx context.Context) (string, error) {
	out, err := s.run(ctx, "", nil, s.cfg.CLIPath, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Export downloads the environment's configuration into a fresh directory
// under BackupDir and returns its path and content stats. The directory is
// removed again when the run fails.
func (s *Service) Export(ctx context.Context, env Environment, apis []string) (*ExportResult, error) {
	dir := filepath.Join(s.cfg.BackupDir, exportDirName(apis, time.Now()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}

	tokenVar := tokenEnvVar()
	args := []string{
		"download",
		"--url", env.URL,
		"--token", tokenVar,
		"--output-folder", dir,
	}
	if len(apis) > 0 && apis[0] != "all" {
		args = append(args, "--api", strings.Join(apis, ","))
	}
	if env.InsecureSSL {
		s.log.Warn("monaco v2 has no insecure flag; environment certificates must be trusted")
	}

	s.log.WithFields(logrus.Fields{"environment": env.Name, "dir": dir}).Info("starting export")
	if _, err := s.run(ctx, "", []string{tokenVar + "=" + env.APIToken}, s.cfg.CLIPath, args...); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	size, files, err := dirStats(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect export: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"environment": env.Name,
		"size":        humanize.Bytes(uint64(size)),
		"files":       files,
	}).Info("export finished")
	return &ExportResult{Path: dir, SizeBytes: size, FileCount: files}, nil
}

// Deploy applies a previously exported configuration set to the target
// environment. A deploy manifest referencing the backup project and a
// one-shot token variable is written next to the backup contents.
func (s *Service) Deploy(ctx context.Context, env Environment, backupPath string, dryRun bool) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup path not found: %w", err)
	}

	tokenVar := tokenEnvVar()
	_, projectName, err := writeManifest(backupPath, env.URL, tokenVar)
	if err != nil {
		return err
	}

	// The subprocess runs with backupPath as its working directory, so the
	// manifest is addressed relative to that, not to our own cwd.
	args := []string{
		"deploy", "manifest.yaml",
		"--environment", manifestEnvName,
		"--project", projectName,
	}
	if dryRun {
		args = append(args, "--dry-run")
	}

	s.log.WithFields(logrus.Fields{
		"environment": env.Name,
		"backup":      filepath.Base(backupPath),
		"dry_run":     dryRun,
	}).Info("starting deploy")
	_, err = s.run(ctx, backupPath, []string{tokenVar + "=" + env.APIToken}, s.cfg.CLIPath, args...)
	return err
}

// Compare exports both environments into a scratch directory and compares
// the resulting file sets by relative path. Configuration content is not
// diffed; the result only states which items exist where.
func (s *Service) Compare(ctx context.Context, source, target Environment, apis []string) (*CompareResult, error) {
	scratch, err := os.MkdirTemp("", "dtbr-compare-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	sets := make([]map[string]struct{}, 2)
	for i, env := range []Environment{source, target} {
		dir := filepath.Join(scratch, env.Name+fmt.Sprintf("-%d", i))
		tokenVar := tokenEnvVar()
		args := []string{"download", "--url", env.URL, "--token", tokenVar, "--output-folder", dir}
		if len(apis) > 0 && apis[0] != "all" {
			args = append(args, "--api", strings.Join(apis, ","))
		}
		if _, err := s.run(ctx, "", []string{tokenVar + "=" + env.APIToken}, s.cfg.CLIPath, args...); err != nil {
			return nil, err
		}
		set, err := relativeFileSet(dir)
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}

	res := &CompareResult{}
	for f := range sets[0] {
		if _, ok := sets[1][f]; ok {
			res.Common++
		} else {
			res.OnlySource++
		}
	}
	for f := range sets[1] {
		if _, ok := sets[0][f]; !ok {
			res.OnlyTarget++
		}
	}
	res.Total = res.Common + res.OnlySource + res.OnlyTarget
	return res, nil
}

// run executes one CLI invocation with combined output capture. extraEnv
// entries are appended to the inherited environment.
func (s *Service) run(ctx context.Context, workDir string, extraEnv []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), extraEnv...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, &CommandError{ExitCode: exitErr.ExitCode(), Output: tail(output, 2048)}
		}
		return output, fmt.Errorf("failed to run monaco: %w", err)
	}
	return output, nil
}

// exportDirName mirrors the backup naming scheme backup_<tag>_<timestamp>.
func exportDirName(apis []string, now time.Time) string {
	tag := "all"
	switch {
	case len(apis) == 1 && apis[0] != "all":
		tag = apis[0]
	case len(apis) > 1:
		tag = "multi"
	}
	return fmt.Sprintf("backup_%s_%s", tag, now.Format("20060102_150405"))
}

// tokenEnvVar returns a unique env var name so tokens never appear on the
// command line or collide between concurrent runs.
func tokenEnvVar() string {
	return "DTBR_TOKEN_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func dirStats(dir string) (int64, int, error) {
	var size int64
	var files int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		files++
		return nil
	})
	return size, files, err
}

func relativeFileSet(dir string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		set[rel] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
