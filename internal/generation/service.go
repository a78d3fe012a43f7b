// Package generation renders a template with request data and optionally
// stores the artifact.
package generation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docgen-workers/internal/audit"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/document"
	"docgen-workers/internal/models"
	"docgen-workers/internal/notify"
	"docgen-workers/internal/storage"
)

const (
	MessageGenerated       = "Document generated successfully"
	MessageGeneratedStored = "Document generated and stored successfully"
)

// BackendResolver is satisfied by *document.Registry.
type BackendResolver interface {
	Backend(docType string) (document.Backend, error)
}

type Request struct {
	TemplateName string
	DocumentType string
	Data         map[string]interface{}
	// StoragePath, when set, uploads the artifact there instead of keeping
	// it in the output directory.
	StoragePath string
	// Validate checks Data against the template schema before rendering.
	Validate bool
}

type Result struct {
	Message     string `json:"message"`
	FileURL     string `json:"file_url,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	Size        int64  `json:"size"`
	RecordID    string `json:"record_id"`
}

// SizeObserver receives the size of every generated artifact.
type SizeObserver interface {
	RecordDocumentSize(ctx context.Context, documentType string, size int64)
}

type Service struct {
	backends BackendResolver
	storage  storage.Backend
	recorder audit.Recorder
	notifier notify.Notifier
	observer SizeObserver
	logger   logger.Logger
	now      func() time.Time
	tempDir  string
}

type Option func(*Service)

func WithRecorder(r audit.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithSizeObserver(o SizeObserver) Option {
	return func(s *Service) { s.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTempDir sets where scratch directories are created; empty uses os.TempDir.
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

func NewService(backends BackendResolver, store storage.Backend, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		backends: backends,
		storage:  store,
		recorder: audit.Nop{},
		notifier: notify.Nop{},
		logger:   log.WithFields(map[string]interface{}{"component": "generation"}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate renders req. With a storage path the artifact is rendered into a
// scratch directory, uploaded and the scratch directory removed; without one
// the artifact stays at the backend's default output path.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	rec := s.newRecord(req, start)

	result, err := s.generate(ctx, req, &rec)
	s.finish(ctx, &rec, start, err)
	if err != nil {
		return nil, err
	}
	result.RecordID = rec.ID
	return result, nil
}

func (s *Service) generate(ctx context.Context, req Request, rec *models.GenerationRecord) (*Result, error) {
	backend, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	rec.DocumentType = string(backend.Type())

	s.logger.Info("Starting document generation", map[string]interface{}{
		"template":     req.TemplateName,
		"documentType": rec.DocumentType,
		"storagePath":  req.StoragePath,
	})

	if req.StoragePath == "" {
		path, size, err := s.render(ctx, backend, req, "")
		if err != nil {
			return nil, err
		}
		rec.OutputPath, rec.Size = path, size
		return &Result{Message: MessageGenerated, FilePath: path, Size: size}, nil
	}

	if s.storage == nil {
		return nil, apperrors.NewInvalidConfigurationError("no storage backend configured")
	}

	scratch, err := os.MkdirTemp(s.tempDir, "docgen-*")
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	out := filepath.Join(scratch, fmt.Sprintf("%s_output.%s", req.TemplateName, backend.Extension()))
	path, size, err := s.render(ctx, backend, req, out)
	if err != nil {
		return nil, err
	}
	rec.OutputPath, rec.Size = path, size

	locator, err := s.storage.UploadFile(ctx, path, req.StoragePath)
	if err != nil {
		return nil, err
	}
	rec.StoragePath, rec.Locator = req.StoragePath, locator

	s.logger.Info("Document uploaded to storage", map[string]interface{}{
		"template":    req.TemplateName,
		"storagePath": req.StoragePath,
		"provider":    s.storage.Provider(),
	})
	return &Result{
		Message:     MessageGeneratedStored,
		FileURL:     locator,
		StoragePath: req.StoragePath,
		Size:        size,
	}, nil
}

// Render streams the artifact bytes to w without keeping or uploading it.
func (s *Service) Render(ctx context.Context, req Request, w io.Writer) (int64, error) {
	start := s.now()
	rec := s.newRecord(req, start)

	n, err := s.renderTo(ctx, req, w, &rec)
	s.finish(ctx, &rec, start, err)
	return n, err
}

func (s *Service) renderTo(ctx context.Context, req Request, w io.Writer, rec *models.GenerationRecord) (int64, error) {
	backend, err := s.prepare(ctx, req)
	if err != nil {
		return 0, err
	}
	rec.DocumentType = string(backend.Type())

	scratch, err := os.MkdirTemp(s.tempDir, "docgen-*")
	if err != nil {
		return 0, apperrors.NewInternalError("failed to create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	out := filepath.Join(scratch, fmt.Sprintf("%s_output.%s", req.TemplateName, backend.Extension()))
	path, _, err := s.render(ctx, backend, req, out)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, apperrors.NewGenerationFailureError(fmt.Sprintf("generated file not readable: %s", path), err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	rec.Size = n
	if err != nil {
		return n, apperrors.NewInternalError("failed to stream generated document", err)
	}
	return n, nil
}

// prepare resolves the backend and runs the optional schema validation.
func (s *Service) prepare(ctx context.Context, req Request) (document.Backend, error) {
	backend, err := s.backends.Backend(req.DocumentType)
	if err != nil {
		return nil, err
	}
	if req.Validate {
		if err := s.validate(ctx, backend, req); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

func (s *Service) validate(ctx context.Context, backend document.Backend, req Request) error {
	schema, err := backend.TemplateSchema(ctx, req.TemplateName)
	if err != nil {
		return err
	}

	result, err := validation.ValidateAgainstSchema(schema, req.Data)
	if err != nil {
		return apperrors.NewInvalidConfigurationError(fmt.Sprintf("template %s has an unusable schema: %v", req.TemplateName, err))
	}
	if !result.Valid {
		return apperrors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

// render runs the backend and checks the artifact exists.
func (s *Service) render(ctx context.Context, backend document.Backend, req Request, outputPath string) (string, int64, error) {
	path, err := backend.Generate(ctx, req.TemplateName, req.Data, outputPath)
	if err != nil {
		return "", 0, err
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", 0, apperrors.NewGenerationFailureError(fmt.Sprintf("generated file not found: %s", path), err)
	}
	return path, info.Size(), nil
}

func (s *Service) newRecord(req Request, start time.Time) models.GenerationRecord {
	return models.GenerationRecord{
		ID:           uuid.NewString(),
		TemplateName: req.TemplateName,
		DocumentType: strings.ToLower(strings.TrimSpace(req.DocumentType)),
		CreatedAt:    start.UTC(),
	}
}

// finish records metrics, the audit entry and the notification. Sink
// failures are logged and never change the request's outcome.
func (s *Service) finish(ctx context.Context, rec *models.GenerationRecord, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	rec.DurationMs = elapsed.Milliseconds()
	rec.Status = models.GenerationStatusSucceeded
	if err != nil {
		rec.Status = models.GenerationStatusFailed
		rec.ErrorCode = string(apperrors.CodeOf(err))
	}

	metrics.DocumentsGenerated.WithLabelValues(rec.DocumentType, metrics.Status(err)).Inc()
	metrics.DocumentGenerationDuration.WithLabelValues(rec.DocumentType).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"recordId":     rec.ID,
		"template":     rec.TemplateName,
		"documentType": rec.DocumentType,
		"status":       rec.Status,
		"durationMs":   rec.DurationMs,
	}
	if err != nil {
		fields["error"] = err.Error()
		fields["errorCode"] = rec.ErrorCode
		s.logger.Error("Document generation failed", fields)
	} else {
		fields["size"] = rec.Size
		s.logger.Info("Document generation completed", fields)
		if s.observer != nil {
			s.observer.RecordDocumentSize(ctx, rec.DocumentType, rec.Size)
		}
	}

	// sinks run even when the job context is already done
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.recorder.Record(sinkCtx, *rec); err != nil {
		s.logger.Warn("Failed to record generation", map[string]interface{}{
			"recordId": rec.ID,
			"error":    err.Error(),
		})
	}
	if err := s.notifier.Notify(sinkCtx, *rec); err != nil {
		s.logger.Warn("Failed to send generation notification", map[string]interface{}{
			"recordId": rec.ID,
			"error":    err.Error(),
		})
	}
}
