package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The OTLP gRPC exporters dial lazily, so the provider can be
// constructed and exercised without a collector listening.
func TestProviderCounters(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Config{
		ServiceName:    "nestclaw-test",
		ServiceVersion: "0.0.0",
		Endpoint:       "localhost:0",
		Insecure:       true,
	})
	require.NoError(t, err)

	require.NotNil(t, p.Tracer())

	p.TaskCreated(ctx)
	p.TaskFinished(ctx, "success")
	p.PolicyBlocked(ctx, "external_send_requested")
	p.RetryStarted(ctx)
	p.ApprovalResolved(ctx, "approve")

	_, span := p.Tracer().Start(ctx, "pipeline.pass")
	span.End()

	// Shutdown flushes toward an unreachable collector; the flush
	// error is expected, panics or hangs are not.
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)

	assert.NotNil(t, p.tasksCreated)
	assert.NotNil(t, p.approvalsResolved)
}

func TestNewDefaultsServiceName(t *testing.T) {
	p, err := New(context.Background(), Config{Endpoint: "localhost:0", Insecure: true})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = p.Shutdown(ctx)
}
