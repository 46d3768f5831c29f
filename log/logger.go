// Package log provides structured logging for sounder components.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for protocol paths (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging bound to one component. Every entry
// carries a "component" field so interleaved server/client/swarm output
// stays attributable.
type Logger struct {
	zap   *zap.Logger
	level zapcore.Level
	// fields holds everything bound so far, component included. zap stores
	// bound fields inside the core, so swapping the core for a new writer
	// would silently drop them; WithOutput replays this slice instead.
	fields []zap.Field
}

// SugaredLogger provides printf-style logging for CLI surfaces. Wraps
// zap.SugaredLogger with the same component context.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger for the named component. Output goes to
// os.Stderr; verbose enables debug-level entries, otherwise info and above.
func NewLogger(component string, verbose bool) *Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return newLoggerWithWriter(component, level, os.Stderr)
}

// WithOutput returns a copy of the logger writing to w instead, keeping
// the component and any With-bound fields. Used by tests to capture
// entries.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		l.level,
	)
	return &Logger{
		zap:    zap.New(core).With(l.fields...),
		level:  l.level,
		fields: l.fields,
	}
}

// With returns a child logger carrying the given fields on every entry,
// e.g. the run id or a connection's remote address.
func (l *Logger) With(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &Logger{
		zap:    l.zap.With(zf...),
		level:  l.level,
		fields: append(append([]zap.Field(nil), l.fields...), zf...),
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

func newLoggerWithWriter(component string, level zapcore.Level, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	fields := []zap.Field{zap.String("component", component)}
	zapLogger := zap.New(core).With(fields...)
	return &Logger{zap: zapLogger, level: level, fields: fields}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes any buffered entries. Call before process exit, typically
// via a defer.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
