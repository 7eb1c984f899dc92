// Package logging provides config-driven categorized logging for varweave.
// Console output goes to stderr. When debug_mode is set a JSON copy is also
// written to .varweave/logs/ so build servers keep a record of every run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"varweave/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // CLI startup, config
	CategoryWeave   Category = "weave"   // Variance rewriting diagnostics
	CategoryModfile Category = "modfile" // Module load/save
	CategorySigning Category = "signing" // Strong-name key lookup and signing
	CategoryLedger  Category = "ledger"  // Run history store
	CategoryWatch   Category = "watch"   // File watcher
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	cfg     config.LoggingConfig
	logFile *os.File
	logsDir string
)

// Initialize builds the root logger from cfg. workspace is only used for
// the debug-mode log file and may be empty.
func Initialize(c config.LoggingConfig, workspace string) error {
	level, err := parseLevel(c.Level)
	if err != nil {
		return err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(c.Format, os.Stderr), zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	dir := ""
	if c.DebugMode && workspace != "" {
		dir = filepath.Join(workspace, config.StateDir, "logs")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		name := fmt.Sprintf("%s_varweave.log", time.Now().Format("2006-01-02"))
		file, err = os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			zapcore.DebugLevel,
		))
	}

	install(zap.New(zapcore.NewTee(cores...)), c, file, dir)

	Get(CategoryBoot).Debug("logging initialized",
		zap.String("level", level.String()),
		zap.Bool("debug_mode", c.DebugMode),
		zap.String("logs_dir", dir))
	return nil
}

// Use installs an existing logger as the root, e.g. zap.NewNop() or an
// observer in tests.
func Use(l *zap.Logger, c config.LoggingConfig) {
	install(l, c, nil, "")
}

func install(l *zap.Logger, c config.LoggingConfig, file *os.File, dir string) {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	root = l
	cfg = c
	logFile = file
	logsDir = dir
}

func consoleEncoder(format string, out *os.File) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Root returns the root logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	return Root().Named(string(category))
}

// LogsDir is the debug-mode log directory, empty when file logging is off.
func LogsDir() string {
	mu.RLock()
	defer mu.RUnlock()
	return logsDir
}

// Sync flushes buffered entries (call at shutdown).
func Sync() {
	_ = Root().Sync()
}

// Reset closes the log file and restores the no-op root.
func Reset() {
	install(zap.NewNop(), config.LoggingConfig{}, nil, "")
}
