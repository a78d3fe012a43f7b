package templateinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"docgen-workers/internal/common/database"
	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/document"
	"docgen-workers/internal/generation"
)

const TaskType = "document-template-info"

type cacheEntry struct {
	Info     document.TemplateInfo `json:"info"`
	LoadedAt time.Time             `json:"loadedAt"`
}

type Handler struct {
	config   *Config
	backends generation.BackendResolver
	cache    *database.RedisClient
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

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
	output := &Output{TemplateName: input.TemplateName, DocumentType: docType}

	key := fmt.Sprintf("%s:%s:%s", h.config.CachePrefix, docType, input.TemplateName)
	if entry, ok := h.loadCached(ctx, key); ok {
		output.Info, output.Cached = entry.Info, true
		return output, nil
	}

	info, err := backend.TemplateInfo(ctx, input.TemplateName)
	if err != nil {
		return nil, err
	}
	output.Info = info

	if h.cache != nil && h.config.CacheTTL > 0 {
		entry := cacheEntry{Info: info, LoadedAt: time.Now().UTC()}
		if err := h.cache.SetJSON(ctx, key, entry, h.config.CacheTTL); err != nil {
			h.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return output, nil
}

func (h *Handler) loadCached(ctx context.Context, key string) (*cacheEntry, bool) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return nil, false
	}

	var entry cacheEntry
	found, err := h.cache.GetJSON(ctx, key, &entry)
	if err != nil {
		h.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	if !found || entry.Info == nil {
		return nil, false
	}

	h.logger.Debug("template info served from cache", map[string]interface{}{
		"key":      key,
		"loadedAt": entry.LoadedAt,
	})
	return &entry, true
}
