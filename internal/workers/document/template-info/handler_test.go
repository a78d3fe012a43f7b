package templateinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/database"
	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/document"
)

func createTestHandler(t *testing.T, cfg *Config) (*Handler, *miniredis.Miniredis, string) {
	t.Helper()
	root := t.TempDir()
	log := logger.NewTestLogger(t)

	docs := config.DocumentsConfig{
		DocxTemplatesPath: filepath.Join(root, "docx"),
		PptxTemplatesPath: filepath.Join(root, "pptx"),
		PdfTemplatesPath:  filepath.Join(root, "pdf"),
		OutputDir:         filepath.Join(root, "output"),
	}
	registry, err := document.NewRegistry(docs, log)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cache := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	return NewHandler(cfg, registry, cache, log), mr, docs.PdfTemplatesPath
}

func TestHandler_Execute_DefaultsAndSidecar(t *testing.T) {
	h, _, dir := createTestHandler(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{"sections": []}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.info.json"), []byte(`{"description": "Quarterly report", "owner": "finance"}`), 0o644))

	output, err := h.Execute(context.Background(), &Input{TemplateName: "report", DocumentType: "pdf"})
	require.NoError(t, err)

	assert.False(t, output.Cached)
	assert.Equal(t, "report", output.Info["name"])
	assert.Equal(t, "Quarterly report", output.Info["description"])
	assert.Equal(t, "finance", output.Info["owner"])
}

func TestHandler_Execute_ServesFromCache(t *testing.T) {
	h, mr, dir := createTestHandler(t, nil)
	path := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sections": []}`), 0o644))

	_, err := h.Execute(context.Background(), &Input{TemplateName: "report", DocumentType: "pdf"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("docgen:info:pdf:report"))
	ttl := mr.TTL("docgen:info:pdf:report")
	assert.Equal(t, DefaultConfig().CacheTTL, ttl)

	// a cached entry outlives the template file until it expires
	require.NoError(t, os.Remove(path))

	output, err := h.Execute(context.Background(), &Input{TemplateName: "report", DocumentType: "pdf"})
	require.NoError(t, err)
	assert.True(t, output.Cached)
	assert.Equal(t, "report", output.Info["name"])

	mr.FastForward(ttl)
	_, err = h.Execute(context.Background(), &Input{TemplateName: "report", DocumentType: "pdf"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestHandler_Execute_CacheDisabledByTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = 0
	h, mr, dir := createTestHandler(t, cfg)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{"sections": []}`), 0o644))

	_, err := h.Execute(context.Background(), &Input{TemplateName: "report", DocumentType: "pdf"})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
		code  errors.ErrorCode
	}{
		{name: "missing name", input: &Input{DocumentType: "docx"}, code: errors.ErrCodeValidationFailed},
		{name: "unknown type", input: &Input{TemplateName: "x", DocumentType: "xls"}, code: errors.ErrCodeInvalidConfiguration},
		{name: "missing template", input: &Input{TemplateName: "x", DocumentType: "docx"}, code: errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := createTestHandler(t, nil)
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}
