package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
)

// MinIOBackend stores files as objects of one bucket below a key prefix.
// Folders are key prefixes; CreateFolder writes a zero-byte "{path}/" marker.
type MinIOBackend struct {
	client        *minio.Client
	bucket        string
	prefix        string
	presignExpiry time.Duration
	logger        logger.Logger
}

func NewMinIOBackend(ctx context.Context, cfg config.MinIOConfig, log logger.Logger) (*MinIOBackend, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, apperrors.NewInvalidConfigurationError("minio storage requires endpoint and bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.NewInvalidConfigurationError(fmt.Sprintf("failed to initialize minio client: %v", err))
	}

	b := newMinIOBackend(client, cfg, log)
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newMinIOBackend(client *minio.Client, cfg config.MinIOConfig, log logger.Logger) *MinIOBackend {
	expiry := time.Duration(cfg.PresignExpiry) * time.Second
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinIOBackend{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cleanPath(cfg.Prefix),
		presignExpiry: expiry,
		logger:        log.WithFields(map[string]interface{}{"provider": "minio", "bucket": cfg.Bucket}),
	}
}

func (b *MinIOBackend) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return b.remoteError("check bucket", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		return b.remoteError("create bucket", err)
	}
	b.logger.Info("Created bucket", nil)
	return nil
}

func (b *MinIOBackend) Provider() string { return "minio" }

// objectKey maps a storage path onto an object key below the prefix.
func (b *MinIOBackend) objectKey(p string) (string, error) {
	segments, err := safeSegments(p)
	if err != nil {
		return "", err
	}
	return joinPath(b.prefix, strings.Join(segments, "/")), nil
}

// folderKey is the listing prefix of a folder, with a trailing slash unless it is the bucket root.
func (b *MinIOBackend) folderKey(p string) (string, error) {
	key, err := b.objectKey(p)
	if err != nil || key == "" {
		return key, err
	}
	return key + "/", nil
}

// storagePath strips the backend prefix from an object key.
func (b *MinIOBackend) storagePath(key string) string {
	key = strings.TrimSuffix(key, "/")
	if b.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, b.prefix), "/")
}

func (b *MinIOBackend) UploadFile(ctx context.Context, localPath, destPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewNotFoundError("File", localPath)
		}
		return "", apperrors.NewInternalError("failed to stat upload source", err)
	}
	key, err := b.objectKey(destPath)
	if err != nil {
		return "", err
	}
	if key == b.prefix {
		return "", apperrors.NewInvalidPathError(destPath)
	}

	info, err := b.client.FPutObject(ctx, b.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: DetectContentType(localPath),
	})
	if err != nil {
		return "", b.remoteError("upload file", err)
	}

	b.logger.Info("Uploaded object", map[string]interface{}{
		"key":  key,
		"size": info.Size,
	})
	return b.presign(ctx, key)
}

func (b *MinIOBackend) UploadStream(ctx context.Context, r io.Reader, destPath, contentType string) (string, error) {
	key, err := b.objectKey(destPath)
	if err != nil {
		return "", err
	}
	if key == b.prefix {
		return "", apperrors.NewInvalidPathError(destPath)
	}
	if contentType == "" {
		contentType = ContentTypeByName(key)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	if _, err := b.client.PutObject(ctx, b.bucket, key, r, -1, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", b.remoteError("upload file", err)
	}
	return b.presign(ctx, key)
}

func (b *MinIOBackend) DownloadFile(ctx context.Context, srcPath, localDest string) (string, error) {
	key, err := b.objectKey(srcPath)
	if err != nil {
		return "", err
	}
	if err := b.client.FGetObject(ctx, b.bucket, key, localDest, minio.GetObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "", apperrors.NewNotFoundError("File", srcPath)
		}
		return "", b.remoteError("download file", err)
	}
	return localDest, nil
}

func (b *MinIOBackend) FileURL(ctx context.Context, p string) (string, error) {
	key, err := b.objectKey(p)
	if err != nil {
		return "", err
	}
	if _, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "", apperrors.NewNotFoundError("File", p)
		}
		return "", b.remoteError("get file url", err)
	}
	return b.presign(ctx, key)
}

func (b *MinIOBackend) presign(ctx context.Context, key string) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, b.presignExpiry, nil)
	if err != nil {
		return "", b.remoteError("presign url", err)
	}
	return u.String(), nil
}

func (b *MinIOBackend) ListFiles(ctx context.Context, folder string) ([]models.StorageEntry, error) {
	prefix, err := b.folderKey(folder)
	if err != nil {
		return nil, err
	}

	entries := []models.StorageEntry{}
	found := false
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, b.remoteError("list files", obj.Err)
		}
		found = true
		if obj.Key == prefix {
			// the folder's own marker
			continue
		}
		entry, ok := b.toEntry(obj)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if !found && cleanPath(folder) != "" {
		return nil, apperrors.NewNotFoundError("Folder", folder)
	}
	return entries, nil
}

func (b *MinIOBackend) toEntry(obj minio.ObjectInfo) (models.StorageEntry, bool) {
	rel := b.storagePath(obj.Key)
	name := path.Base(rel)
	if rel == "" || strings.HasPrefix(name, ".") {
		return models.StorageEntry{}, false
	}

	entry := models.StorageEntry{
		Name: name,
		Path: rel,
		Type: models.EntryTypeFile,
		ID:   obj.Key,
	}
	// common prefixes carry only the key
	if strings.HasSuffix(obj.Key, "/") {
		entry.Type = models.EntryTypeFolder
		return entry, true
	}

	entry.Size = obj.Size
	entry.ContentType = obj.ContentType
	if entry.ContentType == "" {
		entry.ContentType = ContentTypeByName(name)
	}
	if !obj.LastModified.IsZero() {
		entry.Modified = obj.LastModified.UTC().Format(time.RFC3339)
	}
	return entry, true
}

// DeleteFile removes one object, or every object below path when path is a folder.
func (b *MinIOBackend) DeleteFile(ctx context.Context, p string) (bool, error) {
	key, err := b.objectKey(p)
	if err != nil {
		return false, err
	}
	if key == b.prefix {
		return false, apperrors.NewInvalidPathError(p)
	}

	_, err = b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	switch {
	case err == nil:
		if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return false, b.remoteError("delete file", err)
		}
		b.logger.Info("Deleted object", map[string]interface{}{"key": key})
		return true, nil
	case isNoSuchKey(err):
		return b.deleteFolder(ctx, key+"/")
	default:
		return false, b.remoteError("delete file", err)
	}
}

func (b *MinIOBackend) deleteFolder(ctx context.Context, prefix string) (bool, error) {
	objects := b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})

	deleted := false
	for obj := range objects {
		if obj.Err != nil {
			return deleted, b.remoteError("delete file", obj.Err)
		}
		if err := b.client.RemoveObject(ctx, b.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return deleted, b.remoteError("delete file", err)
		}
		deleted = true
	}
	if deleted {
		b.logger.Info("Deleted folder", map[string]interface{}{"prefix": prefix})
	}
	return deleted, nil
}

// CreateFolder returns the folder's key prefix.
func (b *MinIOBackend) CreateFolder(ctx context.Context, p string) (string, error) {
	prefix, err := b.folderKey(p)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return "", nil
	}

	exists, err := b.FolderExists(ctx, p)
	if err != nil {
		return "", err
	}
	if !exists {
		_, err := b.client.PutObject(ctx, b.bucket, prefix, strings.NewReader(""), 0, minio.PutObjectOptions{
			ContentType: "application/x-directory",
		})
		if err != nil {
			return "", b.remoteError("create folder", err)
		}
	}
	return prefix, nil
}

func (b *MinIOBackend) FolderExists(ctx context.Context, p string) (bool, error) {
	prefix, err := b.folderKey(p)
	if err != nil {
		return false, err
	}
	if prefix == "" {
		return true, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, b.remoteError("check folder", obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (b *MinIOBackend) remoteError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewRemoteTransportError(op, err)
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode != 0 {
		return apperrors.NewRemoteAPIError(op, resp.StatusCode, resp.Message)
	}
	return apperrors.NewRemoteTransportError(op, err)
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
