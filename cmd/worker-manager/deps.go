package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"docgen-workers/internal/audit"
	"docgen-workers/internal/common/aws"
	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/database"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/notify"
)

// dependencies are the optional backing services selected by config.
type dependencies struct {
	recorder audit.Recorder
	notifier notify.Notifier
	cache    *database.RedisClient
	postgres *database.PostgresClient
	elastic  *database.ElasticsearchClient
}

func buildDependencies(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, log logger.Logger) (*dependencies, error) {
	deps := &dependencies{}
	var recorders []audit.Recorder
	var notifiers []notify.Notifier

	// --- PostgreSQL audit with retry ---
	if cfg.Audit.Postgres.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			deps.postgres, err = database.NewPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}

		rec, err := audit.NewPostgresRecorder(deps.postgres.DB, cfg.Audit.Postgres.Table)
		if err != nil {
			deps.Close()
			return nil, err
		}
		if err := rec.EnsureSchema(ctx); err != nil {
			deps.Close()
			return nil, err
		}
		recorders = append(recorders, rec)
		zapLog.Info("PostgreSQL audit enabled", zap.String("table", cfg.Audit.Postgres.Table))
	}

	// --- Elasticsearch audit with retry ---
	if cfg.Audit.Elasticsearch.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			deps.elastic, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return deps.elastic.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			deps.Close()
			return nil, err
		}
		recorders = append(recorders, audit.NewElasticsearchRecorder(deps.elastic, cfg.Audit.Elasticsearch.Index))
		zapLog.Info("Elasticsearch audit enabled", zap.String("index", cfg.Audit.Elasticsearch.Index))
	}

	// --- Redis cache with retry ---
	if cfg.Cache.Enabled {
		deps.cache = database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(func() error {
			return deps.cache.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			deps.Close()
			return nil, err
		}
		zapLog.Info("Redis cache enabled", zap.Int("ttl_ms", cfg.Cache.TTL))
	}

	// --- AWS notifications ---
	if cfg.Notifications.SNS.Enabled || cfg.Notifications.SES.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			deps.Close()
			return nil, err
		}
		if cfg.Notifications.SNS.Enabled {
			notifiers = append(notifiers, notify.NewSNSNotifier(aws.NewSNSClient(awsCfg), cfg.Notifications.SNS.TopicARN))
		}
		if cfg.Notifications.SES.Enabled {
			notifiers = append(notifiers, notify.NewSESNotifier(
				aws.NewSESClient(awsCfg),
				cfg.Notifications.SES.FromEmail,
				cfg.Notifications.SES.Recipients,
			))
		}
		log.Info("Notifications enabled", map[string]interface{}{
			"sns": cfg.Notifications.SNS.Enabled,
			"ses": cfg.Notifications.SES.Enabled,
		})
	}

	deps.recorder = audit.Combine(recorders...)
	deps.notifier = notify.Combine(notifiers...)
	return deps, nil
}

func (d *dependencies) Close() error {
	var errs []error
	if d.cache != nil {
		errs = append(errs, d.cache.Close())
	}
	if d.postgres != nil {
		errs = append(errs, d.postgres.Close())
	}
	return errors.Join(errs...)
}
