// Package logging builds the zap loggers used across quarry.
//
// Loggers are constructed once by the caller (usually cmd/quarry) and handed
// to the engine and stores explicitly; nothing in quarry reads a global logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coolbeans/quarry/pkg/errors"
)

// Standard field names for structured logging.
const (
	FieldStage      = "stage"
	FieldPattern    = "pattern"
	FieldGraph      = "graph"
	FieldStrategy   = "strategy"
	FieldExpression = "expression"
	FieldQuery      = "query"
	FieldCount      = "count"
	FieldGroups     = "groups"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldFile       = "file"
	FieldBackend    = "backend"
)

// Config controls logger construction.
type Config struct {
	JSON  bool   // JSON output for machine consumption
	Level string // debug, info, warn, error
}

// New builds a sugared logger from cfg.
func New(cfg Config) (*zap.SugaredLogger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.JSON {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err := zcfg.Build()
		if err != nil {
			return nil, errors.Wrap(err, "build json logger")
		}
		return logger.Sugar(), nil
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core).Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.InvalidConfigurationf("unknown log level %q", name)
	}
}
