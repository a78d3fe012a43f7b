package templateschema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docgen-workers/internal/common/database"
	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/document"
	"docgen-workers/internal/generation"
)

const TaskType = "document-template-schema"

type Handler struct {
	config   *Config
	backends generation.BackendResolver
	cache    *database.RedisClient
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

// NewHandler builds the handler. A nil cache or a zero CacheTTL disables caching.
func NewHandler(config *Config, backends generation.BackendResolver, cache *database.RedisClient, log logger.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		backends: backends,
		cache:    cache,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.TemplateName) == "" {
		return nil, errors.NewValidationFailedError("templateName is required")
	}

	backend, err := h.backends.Backend(input.DocumentType)
	if err != nil {
		return nil, err
	}
	docType := string(backend.Type())
	key := h.cacheKey(docType, input.TemplateName)

	var cached document.Schema
	if h.getFromCache(ctx, key, &cached) {
		return &Output{TemplateName: input.TemplateName, DocumentType: docType, Schema: cached, Cached: true}, nil
	}

	schema, err := backend.TemplateSchema(ctx, input.TemplateName)
	if err != nil {
		return nil, err
	}
	h.setCache(ctx, key, schema)

	return &Output{TemplateName: input.TemplateName, DocumentType: docType, Schema: schema}, nil
}

func (h *Handler) cacheKey(docType, name string) string {
	return fmt.Sprintf("%s:%s:%s", h.config.CachePrefix, docType, name)
}

func (h *Handler) cacheEnabled() bool {
	return h.cache != nil && h.config.CacheTTL > 0
}

// getFromCache reports a hit. Cache errors are logged and treated as a miss.
func (h *Handler) getFromCache(ctx context.Context, key string, dst interface{}) bool {
	if !h.cacheEnabled() {
		return false
	}
	found, err := h.cache.GetJSON(ctx, key, dst)
	if err != nil {
		h.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return found
}

func (h *Handler) setCache(ctx context.Context, key string, v interface{}) {
	if !h.cacheEnabled() {
		return
	}
	if err := h.cache.SetJSON(ctx, key, v, h.config.CacheTTL); err != nil {
		h.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
