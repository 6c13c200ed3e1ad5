package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	// Level is one of debug, info, warn or error
	Level string `yaml:"level"`

	// Format is json or text
	Format string `yaml:"format"`
}

// BuildLogger creates a zap logger matching the logging settings.
// The text format uses zap's console encoder.
func (l LoggingConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", l.Level)
	}

	zc := zap.NewProductionConfig()
	if l.Format == "text" {
		zc = zap.NewDevelopmentConfig()
		zc.Encoding = "console"
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
