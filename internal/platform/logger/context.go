package logger

import "context"

type ctxField string

// context fields, in the order C emits them
var ctxFields = []ctxField{"request_id", "run_id", "kind"}

func with(ctx context.Context, k ctxField, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// WithRequest tags ctx with the transport request id
func WithRequest(ctx context.Context, reqID string) context.Context {
	return with(ctx, "request_id", reqID)
}

// WithRun tags ctx with the ingest run id
func WithRun(ctx context.Context, runID string) context.Context {
	return with(ctx, "run_id", runID)
}

// WithKind tags ctx with the record kind in flight
func WithKind(ctx context.Context, kind string) context.Context {
	return with(ctx, "kind", kind)
}

// RunID is the run id on ctx, empty when absent
func RunID(ctx context.Context) string {
	s, _ := ctx.Value(ctxField("run_id")).(string)
	return s
}

// C returns the root logger carrying whatever ids ctx holds
func C(ctx context.Context) *Logger {
	zc := Get().With()
	for _, k := range ctxFields {
		if v, _ := ctx.Value(k).(string); v != "" {
			zc = zc.Str(string(k), v)
		}
	}
	l := zc.Logger()
	return &l
}
