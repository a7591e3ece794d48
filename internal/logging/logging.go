package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var base = zap.NewNop()

// Init replaces the process logger. level is one of debug, info, warn, error.
// format "console" gives human readable output, anything else JSON.
func Init(level, format string) error {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	base = l
	return nil
}

// SetLogger installs l as the process logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	base = l
}

func Logger() *zap.Logger {
	return base
}

func Sync() {
	_ = base.Sync()
}

// WithDefaultLogger returns a context carrying a logger tagged with reqID.
func WithDefaultLogger(parent context.Context, reqID string) context.Context {
	return context.WithValue(parent, ctxKey{}, base.With(zap.String("req_id", reqID)).Sugar())
}

func fromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok {
			return l
		}
	}
	return base.Sugar()
}

func Infof(ctx context.Context, tpl string, args ...any) {
	fromContext(ctx).Infof(tpl, args...)
}

func Warnf(ctx context.Context, tpl string, args ...any) {
	fromContext(ctx).Warnf(tpl, args...)
}

func Errorf(ctx context.Context, tpl string, args ...any) {
	fromContext(ctx).Errorf(tpl, args...)
}

func Debugf(ctx context.Context, tpl string, args ...any) {
	fromContext(ctx).Debugf(tpl, args...)
}
