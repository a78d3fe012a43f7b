package generate

type Input struct {
	TemplateName string                 `json:"templateName"`
	DocumentType string                 `json:"documentType"`
	Data         map[string]interface{} `json:"data"`
	StoragePath  string                 `json:"storagePath,omitempty"`
	Validate     *bool                  `json:"validate,omitempty"`
}

type Output struct {
	Message     string `json:"message"`
	FileURL     string `json:"fileUrl,omitempty"`
	StoragePath string `json:"storagePath,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	Size        int64  `json:"size"`
	RecordID    string `json:"recordId"`
}
