// Package logging provides categorized file-based logging for conductor.
// Logs are written under <base>/logs/ with one file per category. Logging is
// a silent no-op until Initialize enables it, so library consumers that never
// opt in pay nothing.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup and wiring
	CategorySession   Category = "session"   // session lifecycle
	CategoryStore     Category = "store"     // file store operations
	CategoryGate      Category = "gate"      // gate parsing and evaluation
	CategoryChecks    Category = "checks"    // check provider execution
	CategoryScheduler Category = "scheduler" // dependency leveling, grouping
	CategoryDispatch  Category = "dispatch"  // spawn command generation
	CategoryEvidence  Category = "evidence"  // evidence chain linking
	CategoryCLI       Category = "cli"       // command surface
)

// Logger writes leveled printf-style messages for one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger // nil when logging is disabled
}

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*Logger)
	logsDir string
	enabled bool
	level   zapcore.Level
)

// Initialize enables logging under base/logs at the given level
// ("debug", "info", "warn", "error"). Call once at startup; calling with
// debug=false (the default state) keeps every logger a no-op.
func Initialize(base string, debug bool, levelName string) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = debug
	if !enabled {
		return nil
	}

	logsDir = filepath.Join(base, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	switch levelName {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	loggers = make(map[Category]*Logger)
	return nil
}

// Get returns (or creates) the logger for a category. Disabled categories get
// a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	on := enabled
	mu.RUnlock()

	if !on {
		return &Logger{category: category}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	path := filepath.Join(logsDir, string(category)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		l := &Logger{category: category}
		loggers[category] = l
		return l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(f), level)

	l := &Logger{
		category: category,
		sugar:    zap.New(core).Sugar().Named(string(category)),
	}
	loggers[category] = l
	return l
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// CloseAll flushes and drops every open logger. Safe to call when disabled.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Category convenience helpers, one pair per subsystem.

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

func Gate(format string, args ...interface{})      { Get(CategoryGate).Info(format, args...) }
func GateDebug(format string, args ...interface{}) { Get(CategoryGate).Debug(format, args...) }

func Checks(format string, args ...interface{})      { Get(CategoryChecks).Info(format, args...) }
func ChecksDebug(format string, args ...interface{}) { Get(CategoryChecks).Debug(format, args...) }

func Scheduler(format string, args ...interface{}) { Get(CategoryScheduler).Info(format, args...) }
func SchedulerDebug(format string, args ...interface{}) {
	Get(CategoryScheduler).Debug(format, args...)
}

func Dispatch(format string, args ...interface{})      { Get(CategoryDispatch).Info(format, args...) }
func DispatchDebug(format string, args ...interface{}) { Get(CategoryDispatch).Debug(format, args...) }

func Evidence(format string, args ...interface{})      { Get(CategoryEvidence).Info(format, args...) }
func EvidenceDebug(format string, args ...interface{}) { Get(CategoryEvidence).Debug(format, args...) }

func CLI(format string, args ...interface{})      { Get(CategoryCLI).Info(format, args...) }
func CLIDebug(format string, args ...interface{}) { Get(CategoryCLI).Debug(format, args...) }

func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }
