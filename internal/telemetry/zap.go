package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// zapLogger implements Logger over a *zap.SugaredLogger, for deployments
// (following kubernaut's convention) that prefer zap's JSON encoder over
// clue's context-scoped logger. Selected via config.Config.LogBackend.
type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger constructs a Logger backed by zap's production JSON encoder.
func NewZapLogger() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return zapLogger{l: l.Sugar()}, nil
}

func (z zapLogger) Debug(_ context.Context, msg string, kv ...any) { z.l.Debugw(msg, kv...) }
func (z zapLogger) Info(_ context.Context, msg string, kv ...any)  { z.l.Infow(msg, kv...) }
func (z zapLogger) Warn(_ context.Context, msg string, kv ...any)  { z.l.Warnw(msg, kv...) }
func (z zapLogger) Error(_ context.Context, msg string, kv ...any) { z.l.Errorw(msg, kv...) }
