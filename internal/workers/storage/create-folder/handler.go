package createfolder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/storage"
)

const TaskType = "storage-create-folder"

type Handler struct {
	config  *Config
	storage storage.Backend
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, store storage.Backend, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		storage: store,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
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

// Execute creates every missing folder along path and returns the leaf id.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.Trim(input.Path, "/ ") == "" {
		return nil, errors.NewValidationFailedError("path is required")
	}

	existed, err := h.storage.FolderExists(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	id, err := h.storage.CreateFolder(ctx, input.Path)
	if err != nil {
		return nil, err
	}

	h.logger.Info("folder resolved", map[string]interface{}{
		"path":     input.Path,
		"folderId": id,
		"existed":  existed,
		"provider": h.storage.Provider(),
	})
	return &Output{Path: input.Path, FolderID: id, Exists: existed}, nil
}
