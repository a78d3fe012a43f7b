package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/database"
	"docgen-workers/internal/models"
)

func createTestRecord() models.GenerationRecord {
	return models.GenerationRecord{
		ID:           "rec-1",
		TemplateName: "invoice",
		DocumentType: "docx",
		StoragePath:  "invoices/inv-7.docx",
		Locator:      "file:///data/storage/invoices/inv-7.docx",
		Size:         2048,
		Status:       models.GenerationStatusSucceeded,
		DurationMs:   120,
		CreatedAt:    time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
}

// ==========================
// Postgres
// ==========================

func TestPostgresRecorder_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec := createTestRecord()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_generations")).
		WithArgs(rec.ID, rec.TemplateName, rec.DocumentType, rec.OutputPath, rec.StoragePath,
			rec.Locator, rec.Size, rec.Status, rec.ErrorCode, rec.DurationMs, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recorder, err := NewPostgresRecorder(db, "")
	require.NoError(t, err)
	require.NoError(t, recorder.Record(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO generations").WillReturnError(errors.New("connection reset"))

	recorder, err := NewPostgresRecorder(db, "generations")
	require.NoError(t, err)
	err = recorder.Record(context.Background(), createTestRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS document_generations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	recorder, err := NewPostgresRecorder(db, "document_generations")
	require.NoError(t, err)
	require.NoError(t, recorder.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresRecorder_RejectsTableName(t *testing.T) {
	_, err := NewPostgresRecorder(nil, "audit; DROP TABLE users")
	assert.Error(t, err)
}

// ==========================
// Elasticsearch
// ==========================

func TestElasticsearchRecorder_Record(t *testing.T) {
	var gotPath string
	var gotDoc models.GenerationRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotDoc))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer server.Close()

	client, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)

	rec := createTestRecord()
	require.NoError(t, NewElasticsearchRecorder(client, "").Record(context.Background(), rec))
	assert.Equal(t, "/document-generations/_doc/rec-1", gotPath)
	assert.Equal(t, rec, gotDoc)
}

// ==========================
// Fan-out
// ==========================

type recorderFunc func(ctx context.Context, rec models.GenerationRecord) error

func (f recorderFunc) Record(ctx context.Context, rec models.GenerationRecord) error {
	return f(ctx, rec)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, Nop{}, Combine())
	assert.Equal(t, Nop{}, Combine(nil, nil))

	var calls []string
	ok := recorderFunc(func(ctx context.Context, rec models.GenerationRecord) error {
		calls = append(calls, "ok")
		return nil
	})
	failing := recorderFunc(func(ctx context.Context, rec models.GenerationRecord) error {
		calls = append(calls, "failing")
		return errors.New("sink down")
	})

	single := Combine(nil, ok)
	require.NoError(t, single.Record(context.Background(), createTestRecord()))
	assert.Equal(t, []string{"ok"}, calls)

	calls = nil
	err := Combine(failing, ok).Record(context.Background(), createTestRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Equal(t, []string{"failing", "ok"}, calls, "a failing sink does not stop the others")
}
