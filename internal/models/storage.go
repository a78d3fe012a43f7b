// internal/models/storage.go
package models

// Entry types of a storage listing.
const (
	EntryTypeFile   = "file"
	EntryTypeFolder = "folder"
)

// StorageEntry describes one item directly under a storage folder. Path is
// relative to the storage root; ContentType is empty for folders.
type StorageEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	Modified    string `json:"modified"` // RFC3339
	ContentType string `json:"content_type"`
	ID          string `json:"id,omitempty"`
	WebURL      string `json:"web_url,omitempty"`
}

func (e StorageEntry) IsFolder() bool {
	return e.Type == EntryTypeFolder
}
