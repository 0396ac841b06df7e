package engine

import "context"

// Metrics receives counters for the pipeline's notable moments. The
// observability package provides an OpenTelemetry implementation; the
// engine defaults to a no-op.
type Metrics interface {
	TaskCreated(ctx context.Context)
	TaskFinished(ctx context.Context, outcome string)
	PolicyBlocked(ctx context.Context, reasonCode string)
	RetryStarted(ctx context.Context)
	ApprovalResolved(ctx context.Context, decision string)
}

type nopMetrics struct{}

func (nopMetrics) TaskCreated(context.Context)              {}
func (nopMetrics) TaskFinished(context.Context, string)     {}
func (nopMetrics) PolicyBlocked(context.Context, string)    {}
func (nopMetrics) RetryStarted(context.Context)             {}
func (nopMetrics) ApprovalResolved(context.Context, string) {}
