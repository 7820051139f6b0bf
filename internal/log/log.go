package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures a Logger.
type Config struct {
	// Level is the minimum enabled level: debug, info, warn or error.
	Level string `json:"level" yaml:"level"`

	// Format selects the encoder: json or console.
	Format string `json:"format" yaml:"format"`
}

// Logger is a context-aware structured logger.
//
// All logging methods take a context so that registered hooks can enrich
// entries with request-scoped fields (trace id, request id, operation name).
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel

	mu    sync.RWMutex
	hooks []Hook
}

// New creates a Logger from the config. Unknown levels fall back to info,
// unknown formats fall back to json.
func New(config Config) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if parsed, err := zapcore.ParseLevel(config.Level); err == nil {
		level.SetLevel(parsed)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)

	return &Logger{
		zap:   zap.New(core),
		level: level,
	}
}

// NewNop returns a Logger that discards all entries. Useful in tests.
func NewNop() *Logger {
	return &Logger{
		zap:   zap.NewNop(),
		level: zap.NewAtomicLevelAt(zapcore.InvalidLevel),
	}
}

// AddHook registers a hook applied to every entry logged through this logger.
func (l *Logger) AddHook(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, hook)
}

// SetLevel changes the minimum enabled level at runtime.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Enabled reports whether the given level would be logged.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.level.Enabled(level)
}

func (l *Logger) applyHooks(ctx context.Context, msg string, fields []Field) []Field {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, hook := range hooks {
		fields = hook.Apply(ctx, msg, fields...)
	}

	return fields
}

// Debug logs a message at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	if !l.Enabled(zapcore.DebugLevel) {
		return
	}

	l.zap.Debug(msg, l.applyHooks(ctx, msg, fields)...)
}

// Info logs a message at info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	if !l.Enabled(zapcore.InfoLevel) {
		return
	}

	l.zap.Info(msg, l.applyHooks(ctx, msg, fields)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	if !l.Enabled(zapcore.WarnLevel) {
		return
	}

	l.zap.Warn(msg, l.applyHooks(ctx, msg, fields)...)
}

// Error logs a message at error level.
func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	if !l.Enabled(zapcore.ErrorLevel) {
		return
	}

	l.zap.Error(msg, l.applyHooks(ctx, msg, fields)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = func() *Logger {
		logger := New(Config{Level: "info", Format: "json"})
		logger.AddHook(HookFunc(traceFields))

		return logger
	}()
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger *Logger) {
	if logger == nil {
		return
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultLogger = logger
}

// Debug logs a message at debug level on the default logger.
func Debug(ctx context.Context, msg string, fields ...Field) {
	Default().Debug(ctx, msg, fields...)
}

// Info logs a message at info level on the default logger.
func Info(ctx context.Context, msg string, fields ...Field) {
	Default().Info(ctx, msg, fields...)
}

// Warn logs a message at warn level on the default logger.
func Warn(ctx context.Context, msg string, fields ...Field) {
	Default().Warn(ctx, msg, fields...)
}

// Error logs a message at error level on the default logger.
func Error(ctx context.Context, msg string, fields ...Field) {
	Default().Error(ctx, msg, fields...)
}

// DebugEnabled reports whether debug logging is enabled on the default logger.
// Callers use it to skip building expensive debug payloads.
func DebugEnabled(ctx context.Context) bool {
	return Default().Enabled(zapcore.DebugLevel)
}
