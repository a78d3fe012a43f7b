package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/config"
)

func createTestElasticsearch(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)
	return client
}

func TestElasticsearchClient_Index(t *testing.T) {
	var gotPath, gotBody string
	client := createTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := client.Index(context.Background(), "document-generations", "rec-1", strings.NewReader(`{"status":"succeeded"}`))
	require.NoError(t, err)
	assert.Equal(t, "PUT /document-generations/_doc/rec-1", gotPath)
	assert.JSONEq(t, `{"status":"succeeded"}`, gotBody)
}

func TestElasticsearchClient_IndexError(t *testing.T) {
	client := createTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	err := client.Index(context.Background(), "document-generations", "rec-1", strings.NewReader(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestElasticsearchClient_Ping(t *testing.T) {
	client := createTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, client.Ping(context.Background()))
}
