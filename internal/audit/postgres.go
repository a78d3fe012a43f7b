package audit

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"docgen-workers/internal/models"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresRecorder inserts records into a table of the shape created by EnsureSchema.
type PostgresRecorder struct {
	db    *sql.DB
	table string
}

func NewPostgresRecorder(db *sql.DB, table string) (*PostgresRecorder, error) {
	if table == "" {
		table = "document_generations"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	return &PostgresRecorder{db: db, table: table}, nil
}

// EnsureSchema creates the audit table when missing.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	template_name TEXT NOT NULL,
	document_type TEXT NOT NULL,
	output_path   TEXT NOT NULL DEFAULT '',
	storage_path  TEXT NOT NULL DEFAULT '',
	locator       TEXT NOT NULL DEFAULT '',
	size          BIGINT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error_code    TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL
)`, r.table))
	if err != nil {
		return fmt.Errorf("failed to create audit table %s: %w", r.table, err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, rec models.GenerationRecord) error {
	query := fmt.Sprintf(`INSERT INTO %s
	(id, template_name, document_type, output_path, storage_path, locator, size, status, error_code, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.TemplateName,
		rec.DocumentType,
		rec.OutputPath,
		rec.StoragePath,
		rec.Locator,
		rec.Size,
		rec.Status,
		rec.ErrorCode,
		rec.DurationMs,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", rec.ID, err)
	}
	return nil
}
