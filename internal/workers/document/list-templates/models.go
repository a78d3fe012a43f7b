package listtemplates

import "docgen-workers/internal/document"

type Input struct {
	DocumentType string `json:"documentType"`
}

type Output struct {
	DocumentType string                   `json:"documentType"`
	Templates    []document.TemplateEntry `json:"templates"`
	Count        int                      `json:"count"`
}
