package camunda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
)

type stubHandler struct {
	err   error
	calls int
}

func (s *stubHandler) Handle(client worker.JobClient, job entities.Job) error {
	s.calls++
	return s.err
}

type captureJobRecorder struct {
	mu        sync.Mutex
	processed []string
	durations int
}

func (c *captureJobRecorder) RecordJobProcessed(ctx context.Context, taskType, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = append(c.processed, taskType+":"+status)
}

func (c *captureJobRecorder) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations++
}

func createTestJob(key int64) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: key, Type: "test-task", Retries: 3, Variables: "{}"}}
}

// ==========================
// Instrument
// ==========================

func createTestSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return sr
}

func TestInstrument_Spans(t *testing.T) {
	sr := createTestSpanRecorder(t)
	log := logger.NewTestLogger(t)

	Instrument("span-ok", &stubHandler{}, nil, log)(nil, createTestJob(7))
	Instrument("span-fail", &stubHandler{err: apperrors.NewAuthFailureError("token", nil)}, nil, log)(nil, createTestJob(8))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "span-ok", ok.Name())
	assert.Equal(t, codes.Ok, ok.Status().Code)
	assert.Contains(t, ok.Attributes(), attribute.Int64("zeebe.job_key", 7))

	failed := spans[1]
	assert.Equal(t, "span-fail", failed.Name())
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Contains(t, failed.Attributes(), attribute.String("error.code", string(apperrors.ErrCodeAuthFailure)))
	require.Len(t, failed.Events(), 1)
	assert.Equal(t, "exception", failed.Events()[0].Name)
}

func TestInstrument_Success(t *testing.T) {
	handler := &stubHandler{}
	rec := &captureJobRecorder{}
	completed := metrics.WorkerJobsCompleted.WithLabelValues("instrument-ok")
	before := testutil.ToFloat64(completed)

	Instrument("instrument-ok", handler, rec, logger.NewTestLogger(t))(nil, createTestJob(1))

	assert.Equal(t, 1, handler.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(completed))
	assert.Equal(t, []string{"instrument-ok:success"}, rec.processed)
	assert.Equal(t, 1, rec.durations)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("instrument-ok")))
}

func TestInstrument_FailureCountsErrorCode(t *testing.T) {
	handler := &stubHandler{err: apperrors.NewNotFoundError("template", "x")}
	rec := &captureJobRecorder{}
	failed := metrics.WorkerJobsFailed.WithLabelValues("instrument-fail", string(apperrors.ErrCodeNotFound))
	before := testutil.ToFloat64(failed)

	Instrument("instrument-fail", handler, rec, logger.NewTestLogger(t))(nil, createTestJob(2))

	assert.Equal(t, before+1, testutil.ToFloat64(failed))
	assert.Equal(t, []string{"instrument-fail:error"}, rec.processed)
}

func TestInstrument_NilRecorder(t *testing.T) {
	handler := &stubHandler{}
	assert.NotPanics(t, func() {
		Instrument("instrument-nil", handler, nil, logger.NewTestLogger(t))(nil, createTestJob(3))
	})
}

// ==========================
// Retry
// ==========================

func TestRetry(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "first attempt", errs: []error{nil}, wantCalls: 1},
		{name: "transient then ok", errs: []error{errors.New("connection refused"), errors.New("Unavailable"), nil}, wantCalls: 3},
		{name: "permanent error stops", errs: []error{errors.New("permission denied")}, wantCalls: 1, wantErr: true},
		{
			name:      "budget exhausted",
			errs:      []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
			wantCalls: 4,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), cfg, func(attempt int) error {
				require.Equal(t, calls, attempt)
				e := tt.errs[calls]
				calls++
				return e
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, func(int) error {
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
