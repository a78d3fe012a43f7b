package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"docgen-workers/internal/models"
)

// Indexer stores one JSON document under an id.
type Indexer interface {
	Index(ctx context.Context, index, id string, body io.Reader) error
}

// ElasticsearchRecorder indexes every record as its own document, keyed by record id.
type ElasticsearchRecorder struct {
	indexer Indexer
	index   string
}

func NewElasticsearchRecorder(indexer Indexer, index string) *ElasticsearchRecorder {
	if index == "" {
		index = "document-generations"
	}
	return &ElasticsearchRecorder{indexer: indexer, index: index}
}

func (r *ElasticsearchRecorder) Record(ctx context.Context, rec models.GenerationRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode audit record %s: %w", rec.ID, err)
	}
	return r.indexer.Index(ctx, r.index, rec.ID, bytes.NewReader(body))
}
