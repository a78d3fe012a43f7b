package storage

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// officeTypes covers the artifacts this service produces, which the
// platform mime tables often lack.
var officeTypes = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentTypeByName resolves a content type from the file extension alone.
func ContentTypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := officeTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return mediaType(ct)
	}
	return ""
}

// DetectContentType resolves by extension, then sniffs the file content.
func DetectContentType(path string) string {
	if ct := ContentTypeByName(path); ct != "" {
		return ct
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return defaultContentType
	}
	return mediaType(mt.String())
}

func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
