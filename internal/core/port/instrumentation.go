package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordValidationDuration(ctx context.Context, ms float64)
	IncrementAccepted(ctx context.Context)
	IncrementRejected(ctx context.Context)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordValidationDuration(context.Context, float64) {}
func (NoopInstrumentation) IncrementAccepted(context.Context)                 {}
func (NoopInstrumentation) IncrementRejected(context.Context)                 {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)       {}
