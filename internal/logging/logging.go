package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// Log is the process logger. It discards everything until Init is called.
var Log = zap.NewNop()

// Init builds the global logger. Output goes to stderr so command output on
// stdout stays machine readable.
func Init(level string, development bool) error {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	l, err := config.Build()
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// ParseLevel maps a config string to a zap level; unknown values mean info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	}
	return zap.InfoLevel
}

// WithRequestID stores a request id for WithContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// WithContext returns Log annotated with the request id carried by ctx, if any.
func WithContext(ctx context.Context) *zap.Logger {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return Log.With(zap.String("request_id", id))
	}
	return Log
}

func Close() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { Log.Warn(msg, fields...) }

func Info(msg string, fields ...zap.Field) { Log.Info(msg, fields...) }

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
