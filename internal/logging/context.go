package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	taskIDKey contextKey = iota
	stageKey
	workerKey
)

// WithTask stores the task identifier on the context for downstream logging.
func WithTask(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// WithStage stores the active stage name on the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// WithWorker stores the worker identifier on the context.
func WithWorker(ctx context.Context, worker string) context.Context {
	return context.WithValue(ctx, workerKey, worker)
}

// TaskFromContext returns the task identifier stored on the context.
func TaskFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(taskIDKey).(int64)
	return id, ok
}

// StageFromContext returns the stage name stored on the context.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok
}

// WorkerFromContext returns the worker identifier stored on the context.
func WorkerFromContext(ctx context.Context) (string, bool) {
	worker, ok := ctx.Value(workerKey).(string)
	return worker, ok
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := TaskFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldTaskID, id))
	}
	if stage, ok := StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if worker, ok := WorkerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorker, worker))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
