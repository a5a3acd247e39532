// Package logging builds the zap logger shared by the services and the CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/config"
)

// New builds a logger from cfg. Development environments get the
// development preset (console, debug, human readable times).
func New(appEnv string, cfg config.LoggerConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if appEnv == "development" {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	switch cfg.Encoding {
	case "":
	case "json", "console":
		zc.Encoding = cfg.Encoding
	default:
		return nil, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}
	zc.DisableCaller = cfg.DisableCaller
	zc.DisableStacktrace = cfg.DisableStacktrace
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// keep stdout free for command output
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger when it is nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
