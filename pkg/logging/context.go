package logging

import "context"

type taskIDKeyType struct{}
type runIDKeyType struct{}
type strategyKeyType struct{}

var (
	taskIDKey   = taskIDKeyType{}
	runIDKey    = runIDKeyType{}
	strategyKey = strategyKeyType{}
)

// WithTaskID attaches a task identifier to the context so every log line
// emitted during that task carries it.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// GetTaskID retrieves the task identifier from the context.
func GetTaskID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(taskIDKey).(string)
	return id, ok
}

// WithRunID attaches an execution run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID retrieves the execution run identifier from the context.
func GetRunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok
}

// WithStrategy attaches the active resolution strategy name to the context.
func WithStrategy(ctx context.Context, strategy string) context.Context {
	return context.WithValue(ctx, strategyKey, strategy)
}

// GetStrategy retrieves the active resolution strategy name from the context.
func GetStrategy(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(strategyKey).(string)
	return s, ok
}
