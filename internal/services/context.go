package services

import "context"

// runScope is the set of identifiers a pipeline run carries through its
// steps. It is copied on every change so parent contexts never observe
// values set by a child.
type runScope struct {
	taskID    int64
	hasTask   bool
	stage     string
	pipeline  string
	requestID string
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) runScope {
	if ctx == nil {
		return runScope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(runScope)
	return scope
}

func withScope(ctx context.Context, update func(*runScope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := scopeFrom(ctx)
	update(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

// WithTaskID tags ctx with the task a pipeline is operating on.
func WithTaskID(ctx context.Context, id int64) context.Context {
	return withScope(ctx, func(s *runScope) {
		s.taskID, s.hasTask = id, true
	})
}

// TaskIDFromContext returns the task id set by WithTaskID.
func TaskIDFromContext(ctx context.Context) (int64, bool) {
	scope := scopeFrom(ctx)
	return scope.taskID, scope.hasTask
}

// WithStage tags ctx with a workflow stage name. Blank names are ignored.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withScope(ctx, func(s *runScope) { s.stage = stage })
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := scopeFrom(ctx).stage
	return stage, stage != ""
}

// WithPipeline tags ctx with the pipeline name (completion, veto, manual).
func WithPipeline(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return withScope(ctx, func(s *runScope) { s.pipeline = name })
}

func PipelineFromContext(ctx context.Context) (string, bool) {
	name := scopeFrom(ctx).pipeline
	return name, name != ""
}

// WithRequestID tags ctx with the correlation id shared by every log line
// and alert of one run.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withScope(ctx, func(s *runScope) { s.requestID = id })
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	rid := scopeFrom(ctx).requestID
	return rid, rid != ""
}
