// internal/models/generation.go
package models

import "time"

const (
	GenerationStatusSucceeded = "succeeded"
	GenerationStatusFailed    = "failed"
)

// GenerationRecord is the audit trail entry of one generation request.
type GenerationRecord struct {
	ID           string    `json:"id" db:"id"`
	TemplateName string    `json:"templateName" db:"template_name"`
	DocumentType string    `json:"documentType" db:"document_type"`
	OutputPath   string    `json:"outputPath,omitempty" db:"output_path"`
	StoragePath  string    `json:"storagePath,omitempty" db:"storage_path"`
	Locator      string    `json:"locator,omitempty" db:"locator"`
	Size         int64     `json:"size" db:"size"`
	Status       string    `json:"status" db:"status"`
	ErrorCode    string    `json:"errorCode,omitempty" db:"error_code"`
	DurationMs   int64     `json:"durationMs" db:"duration_ms"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

func (r *GenerationRecord) Succeeded() bool {
	return r.Status == GenerationStatusSucceeded
}
