// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"docgen-workers/internal/common/camunda"
	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/observability"
	"docgen-workers/internal/document"
	"docgen-workers/internal/generation"
	"docgen-workers/internal/storage"
	"docgen-workers/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("storageProvider", cfg.Storage.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Documents & Storage ---
	registry, err := document.NewRegistry(cfg.Documents, log)
	if err != nil {
		zapLog.Fatal("document registry init failed", zap.Error(err))
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		zapLog.Fatal("storage backend init failed", zap.Error(err))
	}

	// --- Audit, notifications, cache ---
	deps, err := buildDependencies(ctx, cfg, zapLog, log)
	if err != nil {
		zapLog.Fatal("dependency init failed", zap.Error(err))
	}
	defer deps.Close()

	service := generation.NewService(registry, store, log,
		generation.WithRecorder(deps.recorder),
		generation.WithNotifier(deps.notifier),
		generation.WithSizeObserver(obs),
	)

	// --- Workers ---
	handlers, err := buildHandlers(cfg, registry, store, service, deps.cache, log)
	if err != nil {
		zapLog.Fatal("worker config invalid", zap.Error(err))
	}

	if err := verifyCatalog(handlers); err != nil {
		zapLog.Fatal("worker catalog mismatch", zap.Error(err))
	}

	workers := startWorkers(zeebe, cfg, handlers, obs, log)
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := newHTTPServer(cfg.App.HTTPPort, readinessChecks(zeebe, deps))
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != errServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping HTTP server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// verifyCatalog checks that every registered handler has an activity entry.
func verifyCatalog(handlers map[string]camunda.JobHandler) error {
	catalog := registry.Catalog()
	for taskType := range handlers {
		if _, err := catalog.Find(taskType); err != nil {
			return err
		}
	}
	if len(handlers) != len(catalog.Activities) {
		return fmt.Errorf("catalog lists %d activities, %d handlers registered", len(catalog.Activities), len(handlers))
	}
	return nil
}

// startWorkers opens one job worker per enabled task type.
func startWorkers(zeebe *camunda.Client, cfg *config.Config, handlers map[string]camunda.JobHandler, obs *observability.Observability, log logger.Logger) []*camunda.CamundaWorker {
	var workers []*camunda.CamundaWorker
	for taskType, handler := range handlers {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			continue
		}
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), taskType, handler, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
			Recorder:      obs,
		}, log))
	}
	return workers
}
