package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dashcam/internal/config"
)

// Level log files kept under the log directory.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to per-level
// files and stdout/stderr.
type Logger struct {
	sugar  *zap.SugaredLogger
	base   *zap.Logger
	logDir string
	files  []*os.File
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	minLevel, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	l := &Logger{logDir: cfg.LogDirectory}

	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return nil, err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		l.Close()
		return nil, err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		l.Close()
		return nil, err
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	stdout := zapcore.Lock(os.Stdout)
	stderr := zapcore.Lock(os.Stderr)

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(infoFile)),
			zap.LevelEnablerFunc(func(lv zapcore.Level) bool { return lv >= minLevel && lv < zapcore.WarnLevel })),
		zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(warningFile)),
			zap.LevelEnablerFunc(func(lv zapcore.Level) bool { return lv >= minLevel && lv == zapcore.WarnLevel })),
		zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(stderr, zapcore.AddSync(errorFile)),
			zap.LevelEnablerFunc(func(lv zapcore.Level) bool { return lv >= zapcore.ErrorLevel })),
	)

	l.base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.base.Sugar()
	return l, nil
}

// NewConsole returns a Logger that writes every enabled level to stderr and
// keeps no files. CleanLogs is a no-op on it.
func NewConsole(level string) (*Logger, error) {
	minLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), minLevel)

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{base: base, sugar: base.Sugar()}, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{base: base, sugar: base.Sugar()}
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(l.logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}
	l.files = append(l.files, f)
	return f, nil
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Dir returns the directory holding the level files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates one of the level log files. Writers keep appending at
// the new end of file.
func (l *Logger) CleanLogs(fileName string) error {
	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}
	if l.logDir == "" {
		return nil
	}

	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}
	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}

// Close flushes and closes the level files.
func (l *Logger) Close() error {
	if l.base != nil {
		l.Sync()
	}
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
