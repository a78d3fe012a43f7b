package storage

import (
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
)

func createTestMinIOBackend(t *testing.T, prefix string) *MinIOBackend {
	t.Helper()
	return newMinIOBackend(nil, config.MinIOConfig{
		Endpoint: "localhost:9000",
		Bucket:   "documents",
		Prefix:   prefix,
	}, logger.NewTestLogger(t))
}

func TestMinIOBackend_ObjectKeys(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		path      string
		key       string
		folderKey string
	}{
		{name: "no prefix", prefix: "", path: "reports/a.pdf", key: "reports/a.pdf", folderKey: "reports/a.pdf/"},
		{name: "prefix", prefix: "/generated/", path: "/reports/a.pdf", key: "generated/reports/a.pdf", folderKey: "generated/reports/a.pdf/"},
		{name: "root without prefix", prefix: "", path: "", key: "", folderKey: ""},
		{name: "root with prefix", prefix: "generated", path: "/", key: "generated", folderKey: "generated/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := createTestMinIOBackend(t, tt.prefix)

			key, err := b.objectKey(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)

			folderKey, err := b.folderKey(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.folderKey, folderKey)
		})
	}
}

func TestMinIOBackend_RejectsParentSegments(t *testing.T) {
	b := createTestMinIOBackend(t, "generated")

	_, err := b.objectKey("../other-tenant/file.pdf")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPath))
}

func TestMinIOBackend_ToEntry(t *testing.T) {
	b := createTestMinIOBackend(t, "generated")
	modified := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	entry, ok := b.toEntry(minio.ObjectInfo{
		Key:          "generated/reports/a.docx",
		Size:         42,
		LastModified: modified,
	})
	require.True(t, ok)
	assert.Equal(t, models.StorageEntry{
		Name:        "a.docx",
		Path:        "reports/a.docx",
		Type:        models.EntryTypeFile,
		Size:        42,
		Modified:    "2024-03-15T09:30:00Z",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		ID:          "generated/reports/a.docx",
	}, entry)

	entry, ok = b.toEntry(minio.ObjectInfo{Key: "generated/reports/2024/"})
	require.True(t, ok)
	assert.Equal(t, "2024", entry.Name)
	assert.Equal(t, "reports/2024", entry.Path)
	assert.True(t, entry.IsFolder())

	_, ok = b.toEntry(minio.ObjectInfo{Key: "generated/reports/.keep"})
	assert.False(t, ok, "hidden objects are skipped")
}

func TestNewMinIOBackend_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinIOBackend(t.Context(), config.MinIOConfig{Bucket: "documents"}, logger.NewTestLogger(t))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidConfiguration))
}
