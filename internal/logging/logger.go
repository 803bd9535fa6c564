package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kyleking/schema-rag/internal/config"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

const (
	logDirPerm  = 0755
	logFilePerm = 0644
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger provides structured logging on top of a slog handler
type Logger struct {
	slog  *slog.Logger
	level LogLevel
	file  *os.File
}

var globalLogger atomic.Pointer[Logger]

// SetGlobalLogger makes l the target of the package-level logging functions.
// A nil l silences them.
func SetGlobalLogger(l *Logger) {
	globalLogger.Store(l)
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg config.LoggingConfig) (*Logger, error) {
	var (
		output io.Writer
		file   *os.File
	)

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	case "file":
		if cfg.File == "" {
			return nil, errors.New("log file path is required when output is 'file'")
		}

		if err := os.MkdirAll(filepath.Dir(cfg.File), logDirPerm); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		file = f
		output = f
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := NewWriterLogger(output, cfg)
	logger.file = file

	return logger, nil
}

// NewWriterLogger builds a logger that writes to w, ignoring cfg.Output
func NewWriterLogger(w io.Writer, cfg config.LoggingConfig) *Logger {
	level := parseLogLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level.slogLevel(),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog: slog.New(handler), level: level}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return &Logger{
		slog:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		level: ErrorLevel,
	}
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}

	return l
}

// parseLogLevel parses a string log level into LogLevel
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Level reports the minimum level this logger emits
func (l *Logger) Level() LogLevel {
	return l.level
}

// Slog exposes the underlying slog logger
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{slog: l.slog.With(key, value), level: l.level, file: l.file}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	return &Logger{slog: l.slog.With(args...), level: l.level, file: l.file}
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	return l.WithField("error", err.Error())
}

func (l *Logger) log(level LogLevel, message string) {
	l.slog.Log(context.Background(), level.slogLevel(), message)
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(DebugLevel, message)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level > DebugLevel {
		return
	}

	l.log(DebugLevel, fmt.Sprintf(format, args...))
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(InfoLevel, message)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.log(WarnLevel, message)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(message string) {
	l.log(ErrorLevel, message)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...))
}

// ErrorWithErr logs an error message with an associated error
func (l *Logger) ErrorWithErr(message string, err error) {
	l.WithError(err).log(ErrorLevel, message)
}

// Close closes the logger and any associated resources
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}

	return nil
}

// Debugf logs a formatted debug message using the global logger
func Debugf(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Debugf(format, args...)
	}
}

// Infof logs a formatted info message using the global logger
func Infof(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Infof(format, args...)
	}
}

// Warnf logs a formatted warning message using the global logger
func Warnf(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Warnf(format, args...)
	}
}

// Errorf logs a formatted error message using the global logger
func Errorf(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Errorf(format, args...)
	}
}

// GetLogger returns the global logger, falling back to stderr at info level
func GetLogger() *Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}

	fallback := NewWriterLogger(os.Stderr, config.LoggingConfig{Level: "info", Format: "text"})
	globalLogger.CompareAndSwap(nil, fallback)

	return globalLogger.Load()
}

// LoggerMiddleware wraps fn with start/finish logging for an operation
func LoggerMiddleware(logger *Logger, operation string, fn func() error) error {
	logger = OrDiscard(logger).WithField("operation", operation)
	logger.Debug("Starting operation")

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err != nil {
		logger.WithField("duration", duration).ErrorWithErr("Operation failed", err)
	} else {
		logger.WithField("duration", duration).Debug("Operation completed successfully")
	}

	return err
}
