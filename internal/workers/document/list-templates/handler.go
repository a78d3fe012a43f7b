package listtemplates

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/generation"
)

const TaskType = "document-list-templates"

type Handler struct {
	config   *Config
	backends generation.BackendResolver
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, backends generation.BackendResolver, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		backends: backends,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		err = errors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err))
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

// Execute lists the templates of one document type. An unknown type fails
// before the template directory is read.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.DocumentType == "" {
		return nil, errors.NewValidationFailedError("documentType is required")
	}

	backend, err := h.backends.Backend(input.DocumentType)
	if err != nil {
		return nil, err
	}

	templates, err := backend.ListTemplates(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list templates", err)
	}

	h.logger.Debug("templates listed", map[string]interface{}{
		"documentType": string(backend.Type()),
		"count":        len(templates),
	})
	return &Output{
		DocumentType: string(backend.Type()),
		Templates:    templates,
		Count:        len(templates),
	}, nil
}
