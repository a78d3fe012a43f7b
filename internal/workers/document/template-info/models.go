package templateinfo

import "docgen-workers/internal/document"

type Input struct {
	TemplateName string `json:"templateName"`
	DocumentType string `json:"documentType"`
}

type Output struct {
	TemplateName string                `json:"templateName"`
	DocumentType string                `json:"documentType"`
	Info         document.TemplateInfo `json:"info"`
	Cached       bool                  `json:"cached"`
}
