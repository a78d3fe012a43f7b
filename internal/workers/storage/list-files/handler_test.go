package listfiles

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"
	"docgen-workers/internal/storage"
)

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T) (*Handler, storage.Backend) {
	t.Helper()
	log := logger.NewTestLogger(t)
	local, err := storage.NewLocalBackend(filepath.Join(t.TempDir(), "storage"), log)
	require.NoError(t, err)
	return NewHandler(nil, local, log), local
}

func upload(t *testing.T, store storage.Backend, path, body string) {
	t.Helper()
	_, err := store.UploadStream(context.Background(), strings.NewReader(body), path, "")
	require.NoError(t, err)
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_ListsFolder(t *testing.T) {
	h, store := createTestHandler(t)
	upload(t, store, "reports/q1.pdf", "pdf")
	upload(t, store, "reports/2024/q2.pdf", "pdf")
	upload(t, store, "other.txt", "x")

	output, err := h.Execute(context.Background(), &Input{Folder: "reports"})
	require.NoError(t, err)

	assert.Equal(t, "local", output.Provider)
	assert.Equal(t, "reports", output.Folder)
	require.Equal(t, 2, output.Count)

	byName := map[string]models.StorageEntry{}
	for _, f := range output.Files {
		byName[f.Name] = f
	}
	assert.True(t, byName["2024"].IsFolder())
	assert.Equal(t, models.EntryTypeFile, byName["q1.pdf"].Type)
	assert.Equal(t, "reports/q1.pdf", byName["q1.pdf"].Path)
	assert.Equal(t, int64(3), byName["q1.pdf"].Size)
}

func TestHandler_Execute_RootAndMissingFolder(t *testing.T) {
	h, store := createTestHandler(t)
	upload(t, store, "a.txt", "a")

	root, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 1, root.Count)

	_, err = h.Execute(context.Background(), &Input{Folder: "nowhere"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestHandler_Execute_RejectsEscapingFolder(t *testing.T) {
	h, _ := createTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{Folder: "../.."})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
}

func TestHandler_JobVariables(t *testing.T) {
	job := createMockJob(3, map[string]interface{}{"folder": "invoices/2024"})

	var input Input
	require.NoError(t, json.Unmarshal([]byte(job.Variables), &input))
	assert.Equal(t, "invoices/2024", input.Folder)
}
