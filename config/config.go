// Package config loads service configuration from YAML files, .env files,
// and environment variables with the DTBR_ prefix. Later sources override
// earlier ones: defaults, then config file, then .env, then environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug"`
	BodyLimit       string        `mapstructure:"body_limit"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"`
}

// DatabaseConfig contains the catalog database settings. A DSN selects
// PostgreSQL; otherwise Path names a local SQLite file. Leaving both empty
// runs the catalog in memory.
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Path string `mapstructure:"path"`
}

// StateConfig locates the operation state database. An empty path keeps
// operation state in memory.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonacoConfig configures the external tool wrapper.
type MonacoConfig struct {
	CLIPath   string        `mapstructure:"cli_path"`
	BackupDir string        `mapstructure:"backup_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OrchestratorConfig bounds bulk operation dispatch.
type OrchestratorConfig struct {
	MaxInFlight int `mapstructure:"max_in_flight"`
}

// ServiceConfig contains service metadata.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Config is the complete service configuration.
type Config struct {
	Service      ServiceConfig      `mapstructure:"service"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	State        StateConfig        `mapstructure:"state"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Monaco       MonacoConfig       `mapstructure:"monaco"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// Loader provides configuration loading functionality.
type Loader struct {
	v      *viper.Viper
	prefix string
}

// NewLoader creates a configuration loader with the given env var prefix.
func NewLoader(envPrefix string) *Loader {
	return &Loader{v: viper.New(), prefix: envPrefix}
}

// SetConfigDefaults sets the standard service defaults.
func (l *Loader) SetConfigDefaults() {
	l.v.SetDefault("service.name", "dtbr")
	l.v.SetDefault("service.version", "dev")

	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.read_timeout", "30s")
	l.v.SetDefault("server.write_timeout", "30s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("server.debug", false)
	l.v.SetDefault("server.body_limit", "10M")
	l.v.SetDefault("server.allowed_origins", []string{"*"})
	l.v.SetDefault("server.rate_limit", 0)

	l.v.SetDefault("database.dsn", "")
	l.v.SetDefault("database.path", "./catalog.db")
	l.v.SetDefault("state.path", "./operations.db")

	l.v.SetDefault("logging.level", "info")
	l.v.SetDefault("logging.format", "text")

	l.v.SetDefault("monaco.cli_path", "monaco")
	l.v.SetDefault("monaco.backup_dir", "./backups")
	l.v.SetDefault("monaco.timeout", "10m")

	l.v.SetDefault("orchestrator.max_in_flight", 4)
}

// Load reads configuration from file, .env, and environment variables. If
// cfgFile is empty, config.yaml is searched in the standard locations.
func (l *Loader) Load(cfgFile string, target interface{}) error {
	if cfgFile != "" {
		l.v.SetConfigFile(cfgFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./configs")
		l.v.AddConfigPath("$HOME/.dtbr")
		l.v.AddConfigPath("/etc/dtbr")
	}

	if err := l.v.ReadInConfig(); err != nil {
		if cfgFile != "" && !isFileNotFoundError(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if cfgFile == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Merge .env if present
	l.v.SetConfigFile(".env")
	l.v.SetConfigType("env")
	_ = l.v.MergeInConfig()

	if l.prefix != "" {
		l.v.SetEnvPrefix(l.prefix)
	}
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.v.Unmarshal(target); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

// LoadConfig loads and validates configuration with standard defaults.
func LoadConfig(cfgFile string) (*Config, error) {
	loader := NewLoader("DTBR")
	loader.SetConfigDefaults()

	cfg := &Config{}
	if err := loader.Load(cfgFile, cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ValidateConfig validates the loaded configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Monaco.Timeout <= 0 {
		return fmt.Errorf("monaco timeout must be positive")
	}
	if cfg.Orchestrator.MaxInFlight < 0 {
		return fmt.Errorf("orchestrator max_in_flight must not be negative")
	}
	return nil
}

// isFileNotFoundError checks if an error is a file not found error.
func isFileNotFoundError(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr, os.ErrNotExist)
	}
	return false
}
