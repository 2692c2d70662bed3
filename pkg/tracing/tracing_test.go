package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerInstallsProvider(t *testing.T) {
	ctx := context.Background()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tp, err := InitTracer(ctx, "chatrooms-test", "127.0.0.1:4318")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "unit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// Nothing listens on the endpoint; the export error surfaces on shutdown
	// and is not interesting here.
	_ = Shutdown(ctx, tp)
}
