package listfiles

import "docgen-workers/internal/models"

type Input struct {
	Folder string `json:"folder"`
}

type Output struct {
	Provider string                `json:"provider"`
	Folder   string                `json:"folder"`
	Files    []models.StorageEntry `json:"files"`
	Count    int                   `json:"count"`
}
