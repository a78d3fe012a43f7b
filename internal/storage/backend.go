// Package storage persists generated artifacts in a local directory, a
// OneDrive drive through Microsoft Graph, or a MinIO bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"docgen-workers/internal/common/auth"
	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	httpclient "docgen-workers/internal/common/http"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
	"docgen-workers/internal/models"
)

// Backend is the provider-neutral storage contract. Paths are relative to the
// configured root and use forward slashes.
type Backend interface {
	Provider() string
	// UploadFile copies a local file to destPath and returns its locator.
	UploadFile(ctx context.Context, localPath, destPath string) (string, error)
	UploadStream(ctx context.Context, r io.Reader, destPath, contentType string) (string, error)
	// DownloadFile copies srcPath to localDest and returns localDest.
	DownloadFile(ctx context.Context, srcPath, localDest string) (string, error)
	FileURL(ctx context.Context, path string) (string, error)
	ListFiles(ctx context.Context, folder string) ([]models.StorageEntry, error)
	// DeleteFile reports false when nothing existed at path.
	DeleteFile(ctx context.Context, path string) (bool, error)
	// CreateFolder creates every missing segment of path and returns the
	// provider's identifier of the leaf.
	CreateFolder(ctx context.Context, path string) (string, error)
	FolderExists(ctx context.Context, path string) (bool, error)
}

// New builds the backend selected by cfg.Provider, wrapped with operation metrics.
func New(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case config.ProviderLocal:
		backend, err = NewLocalBackend(cfg.Local.Path, log)
	case config.ProviderOneDrive, config.ProviderGraph:
		backend, err = newGraphFromConfig(cfg.OneDrive, log)
	case config.ProviderMinIO:
		backend, err = NewMinIOBackend(ctx, cfg.MinIO, log)
	default:
		return nil, apperrors.NewInvalidConfigurationError(fmt.Sprintf("unsupported storage provider: %s", cfg.Provider))
	}
	if err != nil {
		return nil, err
	}

	log.Info("Storage backend initialized", map[string]interface{}{
		"provider": backend.Provider(),
	})
	return Instrument(backend), nil
}

func newGraphFromConfig(cfg config.OneDriveConfig, log logger.Logger) (*GraphBackend, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.CertPath == "" {
		return nil, apperrors.NewInvalidConfigurationError("onedrive storage requires tenant_id, client_id and cert_path")
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := httpclient.NewClient(timeout)

	exchanger := auth.NewAssertionExchanger(auth.AssertionConfig{
		TokenURL:       cfg.TokenURL(),
		ClientID:       cfg.ClientID,
		BundlePath:     cfg.CertPath,
		BundlePassword: cfg.CertPassword,
	}, client, nil)
	session := auth.NewSession(exchanger, log)

	return NewGraphBackend(GraphConfig{
		BaseURL:    cfg.GraphURL(),
		RootFolder: cfg.RootFolder,
	}, session, client, log), nil
}

// instrumented counts every operation in storage_operations_total.
type instrumented struct {
	next Backend
}

// Instrument wraps b so each call is recorded by provider, operation and outcome.
func Instrument(b Backend) Backend {
	if _, ok := b.(*instrumented); ok {
		return b
	}
	return &instrumented{next: b}
}

func (i *instrumented) record(op string, err error) {
	metrics.StorageOperations.WithLabelValues(i.next.Provider(), op, metrics.Status(err)).Inc()
}

func (i *instrumented) Provider() string { return i.next.Provider() }

func (i *instrumented) UploadFile(ctx context.Context, localPath, destPath string) (string, error) {
	locator, err := i.next.UploadFile(ctx, localPath, destPath)
	i.record("upload", err)
	return locator, err
}

func (i *instrumented) UploadStream(ctx context.Context, r io.Reader, destPath, contentType string) (string, error) {
	locator, err := i.next.UploadStream(ctx, r, destPath, contentType)
	i.record("upload", err)
	return locator, err
}

func (i *instrumented) DownloadFile(ctx context.Context, srcPath, localDest string) (string, error) {
	path, err := i.next.DownloadFile(ctx, srcPath, localDest)
	i.record("download", err)
	return path, err
}

func (i *instrumented) FileURL(ctx context.Context, path string) (string, error) {
	u, err := i.next.FileURL(ctx, path)
	i.record("file_url", err)
	return u, err
}

func (i *instrumented) ListFiles(ctx context.Context, folder string) ([]models.StorageEntry, error) {
	entries, err := i.next.ListFiles(ctx, folder)
	i.record("list", err)
	return entries, err
}

func (i *instrumented) DeleteFile(ctx context.Context, path string) (bool, error) {
	deleted, err := i.next.DeleteFile(ctx, path)
	i.record("delete", err)
	return deleted, err
}

func (i *instrumented) CreateFolder(ctx context.Context, path string) (string, error) {
	id, err := i.next.CreateFolder(ctx, path)
	i.record("create_folder", err)
	return id, err
}

func (i *instrumented) FolderExists(ctx context.Context, path string) (bool, error) {
	exists, err := i.next.FolderExists(ctx, path)
	i.record("folder_exists", err)
	return exists, err
}

// splitPath trims slashes and drops empty segments.
func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func cleanPath(p string) string {
	return strings.Join(splitPath(p), "/")
}
