package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"docgen-workers/internal/common/logger"
)

func TestNew_InstallsProviders(t *testing.T) {
	obs := New("docgen-workers-test", logger.NewTestLogger(t))
	require.NotNil(t, obs.meterProvider)
	t.Cleanup(obs.Shutdown)

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	assert.Same(t, obs.tracerProvider, tp)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(ctx, "document-generate", "success")
		obs.RecordJobDuration(ctx, "document-generate", 120*time.Millisecond, "success")
		obs.RecordDocumentSize(ctx, "pdf", 2048)
	})
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	ctx := context.Background()
	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(ctx, "x", "error")
		obs.RecordJobDuration(ctx, "x", time.Second, "error")
		obs.RecordDocumentSize(ctx, "docx", 1)
		obs.Shutdown()
		(&Observability{}).Shutdown()
	})
}
