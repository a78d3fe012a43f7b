package main

import (
	"fmt"
	"time"

	"docgen-workers/internal/common/camunda"
	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/database"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/document"
	"docgen-workers/internal/generation"
	"docgen-workers/internal/storage"

	gen "docgen-workers/internal/workers/document/generate"
	lt "docgen-workers/internal/workers/document/list-templates"
	ti "docgen-workers/internal/workers/document/template-info"
	ts "docgen-workers/internal/workers/document/template-schema"
	cf "docgen-workers/internal/workers/storage/create-folder"
	df "docgen-workers/internal/workers/storage/delete-file"
	lf "docgen-workers/internal/workers/storage/list-files"
)

// overlay copies a worker's config entry onto its package defaults. Zero
// values keep the default.
func overlay(cfg *config.Config, taskType string, enabled *bool, maxJobsActive *int, timeout *time.Duration) {
	w := config.GetWorkerConfig(cfg, taskType)
	*enabled = w.Enabled
	if w.MaxJobsActive != 0 {
		*maxJobsActive = w.MaxJobsActive
	}
	if w.Timeout != 0 {
		*timeout = config.GetDuration(w.Timeout)
	}
}

func generateConfig(cfg *config.Config) *gen.Config {
	c := gen.DefaultConfig()
	overlay(cfg, gen.TaskType, &c.Enabled, &c.MaxJobsActive, &c.Timeout)
	c.ValidateData = cfg.Documents.ValidateData
	return c
}

// buildHandlers assembles the seven job handlers, validating every worker
// config first.
func buildHandlers(cfg *config.Config, templates *document.Registry, store storage.Backend, service *generation.Service, cache *database.RedisClient, log logger.Logger) (map[string]camunda.JobHandler, error) {
	genCfg := generateConfig(cfg)

	ltCfg := lt.DefaultConfig()
	overlay(cfg, lt.TaskType, &ltCfg.Enabled, &ltCfg.MaxJobsActive, &ltCfg.Timeout)

	tsCfg := ts.DefaultConfig()
	overlay(cfg, ts.TaskType, &tsCfg.Enabled, &tsCfg.MaxJobsActive, &tsCfg.Timeout)
	tsCfg.CacheTTL = config.GetDuration(cfg.Cache.TTL)

	tiCfg := ti.DefaultConfig()
	overlay(cfg, ti.TaskType, &tiCfg.Enabled, &tiCfg.MaxJobsActive, &tiCfg.Timeout)
	tiCfg.CacheTTL = config.GetDuration(cfg.Cache.TTL)

	lfCfg := lf.DefaultConfig()
	overlay(cfg, lf.TaskType, &lfCfg.Enabled, &lfCfg.MaxJobsActive, &lfCfg.Timeout)

	dfCfg := df.DefaultConfig()
	overlay(cfg, df.TaskType, &dfCfg.Enabled, &dfCfg.MaxJobsActive, &dfCfg.Timeout)

	cfCfg := cf.DefaultConfig()
	overlay(cfg, cf.TaskType, &cfCfg.Enabled, &cfCfg.MaxJobsActive, &cfCfg.Timeout)

	checks := []struct {
		taskType string
		validate func() error
	}{
		{gen.TaskType, genCfg.Validate},
		{lt.TaskType, ltCfg.Validate},
		{ts.TaskType, tsCfg.Validate},
		{ti.TaskType, tiCfg.Validate},
		{lf.TaskType, lfCfg.Validate},
		{df.TaskType, dfCfg.Validate},
		{cf.TaskType, cfCfg.Validate},
	}
	for _, c := range checks {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s worker config: %w", c.taskType, err)
		}
	}

	return map[string]camunda.JobHandler{
		gen.TaskType: gen.NewHandler(genCfg, service, log),
		lt.TaskType:  lt.NewHandler(ltCfg, templates, log),
		ts.TaskType:  ts.NewHandler(tsCfg, templates, cache, log),
		ti.TaskType:  ti.NewHandler(tiCfg, templates, cache, log),
		lf.TaskType:  lf.NewHandler(lfCfg, store, log),
		df.TaskType:  df.NewHandler(dfCfg, store, log),
		cf.TaskType:  cf.NewHandler(cfCfg, store, log),
	}, nil
}
