package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap SugaredLogger to Logger
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger builds a zap logger writing to stderr. format is "json" for
// production encoding or "console" for the development encoder.
func NewZapLogger(format string, level Level) (*ZapLogger, error) {
	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "text", "":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return &ZapLogger{sugar: logger.Sugar(), level: cfg.Level}, nil
}

// NewZapLoggerFromCore wraps an existing core. SetLevel adjusts level, which
// the core is expected to be enabled by.
func NewZapLoggerFromCore(core zapcore.Core, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{
		sugar: zap.New(core).Sugar(),
		level: level,
	}
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.sugar.Debugw(msg, keysAndValues(fields...)...)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.sugar.Infow(msg, keysAndValues(fields...)...)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.sugar.Warnw(msg, keysAndValues(fields...)...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	z.sugar.Errorw(msg, append(keysAndValues(fields...), zap.Error(err))...)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.sugar.Fatalw(msg, append(keysAndValues(fields...), zap.Error(err))...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{
		sugar: z.sugar.With(keysAndValues(fields)...),
		level: z.level,
	}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries
func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}

func keysAndValues(fields ...Fields) []any {
	all := merged(nil, fields...)
	kv := make([]any, 0, 2*len(all))
	for _, k := range sortedKeys(all) {
		kv = append(kv, k, all[k])
	}
	return kv
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
