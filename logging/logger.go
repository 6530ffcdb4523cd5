package logging

// Logging functionality for azure-status-web

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger levels
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Logger wraps a zap logger with the log file it owns
type Logger struct {
	zl       *zap.Logger
	logFile  *os.File
	logLevel string
}

// Global logger instance. Handlers log from many goroutines, so swaps are atomic.
var globalLogger atomic.Pointer[Logger]

// ParseLevel normalizes a level name; unknown or empty values fall back to INFO.
func ParseLevel(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// InitLogger initializes the global logger
func InitLogger(logLevel string) error {
	// Create logs directory if it doesn't exist
	logsDir := "logs"
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// One file per day
	timestamp := time.Now().Format("2006-01-02")
	logFileName := filepath.Join(logsDir, fmt.Sprintf("azure-status-web-%s.log", timestamp))

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	level := zap.NewAtomicLevelAt(toZapLevel(logLevel))
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(logFile), level),
	}

	// Mirror to stdout only when AZSTATUS_LOG_TO_STDOUT is explicitly enabled (opt-in)
	mirrorEnv := strings.TrimSpace(os.Getenv("AZSTATUS_LOG_TO_STDOUT"))
	mirrorToStdout := strings.EqualFold(mirrorEnv, "1") || strings.EqualFold(mirrorEnv, "true") || strings.EqualFold(mirrorEnv, "yes")
	if mirrorToStdout {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), level))
	}

	install(zapcore.NewTee(cores...), logFile, logLevel)

	Info("Logger initialized", "level", logLevel, "file", logFileName, "mirrorStdout", fmt.Sprintf("%t", mirrorToStdout))
	return nil
}

// UseCore routes all logging to the given core. Tests use it with zaptest/observer.
func UseCore(core zapcore.Core, logLevel string) {
	install(core, nil, logLevel)
}

func install(core zapcore.Core, logFile *os.File, logLevel string) {
	// Skip Debug/Info/Warn/Error and write so the caller field points at the real call site
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	prev := globalLogger.Swap(&Logger{zl: zl, logFile: logFile, logLevel: logLevel})
	if prev != nil {
		_ = prev.zl.Sync()
		if prev.logFile != nil {
			_ = prev.logFile.Close()
		}
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func toZapLevel(level string) zapcore.Level {
	switch level {
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel // Log everything
	}
}

// Close flushes and closes the log file
func Close() error {
	l := globalLogger.Load()
	if l == nil {
		return nil
	}
	_ = l.zl.Sync()
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// fields converts key/value string pairs into zap fields; a dangling key is dropped
func fields(keyValues []string) []zap.Field {
	out := make([]zap.Field, 0, len(keyValues)/2)
	for i := 0; i < len(keyValues)-1; i += 2 {
		out = append(out, zap.String(keyValues[i], keyValues[i+1]))
	}
	return out
}

func write(level zapcore.Level, message string, keyValues []string) {
	l := globalLogger.Load()
	if l == nil {
		return
	}
	if ce := l.zl.Check(level, message); ce != nil {
		ce.Write(fields(keyValues)...)
	}
}

// Debug logs a debug message
func Debug(message string, keyValues ...string) {
	write(zapcore.DebugLevel, message, keyValues)
}

// Info logs an info message
func Info(message string, keyValues ...string) {
	write(zapcore.InfoLevel, message, keyValues)
}

// Warn logs a warning message
func Warn(message string, keyValues ...string) {
	write(zapcore.WarnLevel, message, keyValues)
}

// Error logs an error message
func Error(message string, keyValues ...string) {
	write(zapcore.ErrorLevel, message, keyValues)
}

// GetLogLevel returns the current log level
func GetLogLevel() string {
	l := globalLogger.Load()
	if l == nil {
		return LevelInfo
	}
	return l.logLevel
}
