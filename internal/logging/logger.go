// Package logging provides categorized loggers for the garden pipeline.
// Every category is a named child of one zap root logger; until Initialize
// is called all categories log to a no-op core, so tests and library callers
// stay silent.
package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gardenloop/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config
	CategoryAPI       Category = "api"       // Gemini calls
	CategoryGenerate  Category = "generate"  // Design generation
	CategoryVerify    Category = "verify"    // Verification and verdict handling
	CategoryAnnotate  Category = "annotate"  // Space photo annotation
	CategoryPipeline  Category = "pipeline"  // Retry orchestration
	CategoryWorkspace Category = "workspace" // Directory scanning, files
	CategoryStatus    Category = "status"    // Status reporting
)

// Logger is a category logger with printf-style methods.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	root     = zap.NewNop()
	settings config.LoggingConfig
	loggers  = make(map[Category]*Logger)
)

// Initialize installs the root logger used by every category. Passing nil
// restores the no-op logger.
func Initialize(base *zap.Logger, cfg config.LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()

	if base == nil {
		base = zap.NewNop()
	}
	root = base
	settings = cfg
	loggers = make(map[Category]*Logger)
}

// New builds a zap logger from config. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.Format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	}

	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Root returns the installed root logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Sync flushes the root logger.
func Sync() {
	_ = Root().Sync()
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	base := root
	if !settings.IsCategoryEnabled(string(category)) {
		base = zap.NewNop()
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// =============================================================================
// RUN CONTEXT
// =============================================================================

type runIDKey struct{}

// WithRunID tags ctx with a pipeline run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run ID set by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// For returns the category logger, carrying a "run" field when ctx belongs
// to a pipeline run.
func For(ctx context.Context, category Category) *Logger {
	l := Get(category)
	if id := RunID(ctx); id != "" {
		return l.With("run", id)
	}
	return l
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

// Workspace logs to the workspace category
func Workspace(format string, args ...interface{}) {
	Get(CategoryWorkspace).Info(format, args...)
}

// WorkspaceDebug logs debug to the workspace category
func WorkspaceDebug(format string, args ...interface{}) {
	Get(CategoryWorkspace).Debug(format, args...)
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
