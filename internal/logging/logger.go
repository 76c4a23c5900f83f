package logging

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a context-aware wrapper around zap. Every level method
// takes a context first and stamps the entry with whatever correlation
// identifiers the context carries.
type Logger struct {
	z   *zap.Logger
	cfg *Config
}

// NewLogger validates cfg and assembles the core stack. provider may be
// nil; the OTEL sink is then skipped even when cfg enables it.
func NewLogger(cfg *Config, provider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	core, err := assembleCore(cfg, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble core: %w", err)
	}
	z := zap.New(core, cfg.zapOptions()...)
	if fields := cfg.constantFields(); len(fields) > 0 {
		z = z.With(fields...)
	}
	return &Logger{z: z, cfg: cfg}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), cfg: NewDefaultConfig()}
}

// log is the single emission path. Levels below DPanic are gated before
// context fields are extracted; terminal levels always reach zap so
// panic and exit behavior hold even when no core wants the entry.
func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	if lvl < zapcore.DPanicLevel && !l.z.Core().Enabled(lvl) {
		return
	}
	l.z.Log(lvl, msg, append(ContextFields(ctx), fields...)...)
}

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) DPanic(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DPanicLevel, msg, fields)
}

func (l *Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.FatalLevel, msg, fields)
}

// With returns a child logger carrying the extra fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...), cfg: l.cfg}
}

// Named returns a child logger with a dotted name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{z: l.z.Named(name), cfg: l.cfg}
}

// Enabled reports whether entries at lvl would be emitted.
func (l *Logger) Enabled(lvl zapcore.Level) bool {
	return l.z.Core().Enabled(lvl)
}

// Sync flushes buffered entries. Syncing a terminal or pipe returns
// EINVAL or ENOTTY on Linux; those are swallowed.
func (l *Logger) Sync() error {
	err := l.z.Sync()
	if err != nil && benignSyncError(err) {
		return nil
	}
	return err
}

// Underlying exposes the wrapped *zap.Logger for libraries that take
// one directly.
func (l *Logger) Underlying() *zap.Logger {
	return l.z
}

func benignSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
