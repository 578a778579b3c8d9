// Package logging builds the categorized zap loggers used across skypescrape.
// Each subsystem logs under its own category name, and categories can be
// switched off individually from the logging config.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skypescrape/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, login
	CategoryBrowser Category = "browser" // Browser launch, pages, navigation
	CategoryWalker  Category = "walker"  // Conversation walk and history loading
	CategoryExport  Category = "export"  // Export policies
	CategoryStore   Category = "store"   // Record store inspection
)

// Logger hands out category loggers that share one zap core.
type Logger struct {
	base *zap.Logger
	cfg  config.LoggingConfig
}

// New builds the process logger from cfg. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Sampling = nil
	zc.DisableStacktrace = true
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(cfg.Format) {
	case "", "console", "text":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
	default:
		return nil, fmt.Errorf("unknown log format %q (valid: json, console)", cfg.Format)
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}
	zc.Level = level

	zc.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	base, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{base: base, cfg: cfg}, nil
}

// Wrap adapts an existing zap logger, as used by tests.
func Wrap(base *zap.Logger, cfg config.LoggingConfig) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base, cfg: cfg}
}

// Get returns the logger for a category, or a no-op logger if the category
// is disabled.
func (l *Logger) Get(category Category) *zap.Logger {
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.base.Named(string(category))
}

// Base returns the uncategorized logger.
func (l *Logger) Base() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
