// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
)

const tracerName = "docgen-workers/camunda"

// JobHandler completes or fails the job itself. The returned error is the
// execution error already reported to the engine; it only feeds logs and metrics.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// JobRecorder receives per-job otel measurements.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
	Recorder      JobRecorder
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	handler JobHandler,
	opts WorkerOptions,
	log logger.Logger,
) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	step := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, opts.Recorder, log))
	if opts.MaxJobsActive > 0 {
		step = step.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}

	log.Info("worker started", map[string]interface{}{
		"maxJobsActive": opts.MaxJobsActive,
		"timeout_ms":    opts.Timeout.Milliseconds(),
	})

	return &CamundaWorker{
		worker:   step.Open(),
		logger:   log,
		taskType: taskType,
	}
}

// Instrument adapts handler to the zeebe handler signature. Every job runs
// inside a span from the global tracer provider and its outcome lands in the
// prometheus counters and the optional otel recorder.
func Instrument(taskType string, handler JobHandler, rec JobRecorder, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		ctx, span := otel.Tracer(tracerName).Start(context.Background(), taskType,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("zeebe.task_type", taskType),
				attribute.Int64("zeebe.job_key", job.Key),
				attribute.Int64("zeebe.process_instance_key", job.ProcessInstanceKey),
			),
		)
		defer span.End()

		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		err := handler.Handle(client, job)
		elapsed := time.Since(start)
		status := metrics.Status(err)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		if err != nil {
			code := string(apperrors.CodeOf(err))
			metrics.WorkerJobsFailed.WithLabelValues(taskType, code).Inc()
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.code", code))
			span.SetStatus(codes.Error, code)

			fields := map[string]interface{}{
				"jobKey": job.Key,
				"error":  err.Error(),
			}
			if sc := span.SpanContext(); sc.HasTraceID() {
				fields["traceId"] = sc.TraceID().String()
			}
			log.Error("Handler returned error", fields)
		} else {
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
			span.SetStatus(codes.Ok, "")
		}

		if rec != nil {
			rec.RecordJobProcessed(ctx, taskType, status)
			rec.RecordJobDuration(ctx, taskType, elapsed, status)
		}
	}
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs. The shared client
// stays open.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
