package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/generation"
)

const TaskType = "document-generate"

// Generator is satisfied by *generation.Service.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

type Handler struct {
	config    *Config
	generator Generator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, generator Generator, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		generator: generator,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	return h.completeJob(client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute runs one generation request. A job's validate flag wins over the
// configured default.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationFailedError("input cannot be nil")
	}
	if strings.TrimSpace(input.TemplateName) == "" {
		return nil, errors.NewValidationFailedError("templateName is required")
	}
	if strings.TrimSpace(input.DocumentType) == "" {
		return nil, errors.NewValidationFailedError("documentType is required")
	}

	validate := h.config.ValidateData
	if input.Validate != nil {
		validate = *input.Validate
	}

	result, err := h.generator.Generate(ctx, generation.Request{
		TemplateName: input.TemplateName,
		DocumentType: input.DocumentType,
		Data:         input.Data,
		StoragePath:  input.StoragePath,
		Validate:     validate,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		Message:     result.Message,
		FileURL:     result.FileURL,
		StoragePath: result.StoragePath,
		FilePath:    result.FilePath,
		Size:        result.Size,
		RecordID:    result.RecordID,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":   job.Key,
		"recordId": output.RecordID,
	})
	return nil
}
