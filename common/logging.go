package common

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LoggerConfig contains configuration for the global logger.
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	Format     string // "json" or "text"
	TimeFormat string
}

// DefaultLoggerConfig returns a logger config with sensible defaults.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:      "info",
		Format:     "text",
		TimeFormat: time.RFC3339,
	}
}

// ConfigureLogger applies the given configuration to the global Logger.
func ConfigureLogger(config LoggerConfig) {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if config.Format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: config.TimeFormat,
		})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: config.TimeFormat,
			FullTimestamp:   true,
		})
	}
}
