package templateschema

import "docgen-workers/internal/document"

type Input struct {
	TemplateName string `json:"templateName"`
	DocumentType string `json:"documentType"`
}

type Output struct {
	TemplateName string          `json:"templateName"`
	DocumentType string          `json:"documentType"`
	Schema       document.Schema `json:"schema"`
	Cached       bool            `json:"cached"`
}
