// Package document renders docx, pptx and pdf documents from templates with
// flat {{key}} placeholders.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"docgen-workers/internal/common/config"
	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
)

// Type identifies a document backend.
type Type string

const (
	TypeDocx Type = "docx"
	TypePptx Type = "pptx"
	TypePDF  Type = "pdf"
)

// ParseType maps a request's document type onto a backend type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeDocx:
		return TypeDocx, nil
	case TypePptx:
		return TypePptx, nil
	case TypePDF:
		return TypePDF, nil
	}
	return "", apperrors.NewInvalidConfigurationError(fmt.Sprintf("unsupported document type: %s", s))
}

// TemplateEntry is one template in a listing.
type TemplateEntry struct {
	Name string       `json:"name"`
	File string       `json:"file"`
	Type Type         `json:"type"`
	Info TemplateInfo `json:"info"`
}

// Backend generates one document type from the templates of one directory.
type Backend interface {
	Type() Type
	// Extension is the generated artifact's extension without a dot.
	Extension() string
	ListTemplates(ctx context.Context) ([]TemplateEntry, error)
	TemplateInfo(ctx context.Context, name string) (TemplateInfo, error)
	TemplateSchema(ctx context.Context, name string) (Schema, error)
	Generate(ctx context.Context, name string, data map[string]interface{}, outputPath string) (string, error)
}

// Clock supplies the timestamps embedded in output names and pdf metadata.
type Clock func() time.Time

// Registry resolves document types to backends.
type Registry struct {
	backends map[Type]Backend
}

// NewRegistry builds the three backends from config. Missing template
// directories are created.
func NewRegistry(cfg config.DocumentsConfig, log logger.Logger) (*Registry, error) {
	return NewRegistryWithClock(cfg, time.Now, log)
}

func NewRegistryWithClock(cfg config.DocumentsConfig, now Clock, log logger.Logger) (*Registry, error) {
	for _, dir := range []string{cfg.DocxTemplatesPath, cfg.PptxTemplatesPath, cfg.PdfTemplatesPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create template directory %s: %w", dir, err)
		}
	}

	return &Registry{
		backends: map[Type]Backend{
			TypeDocx: NewDocxBackend(cfg.DocxTemplatesPath, cfg.OutputDir, now, log),
			TypePptx: NewPptxBackend(cfg.PptxTemplatesPath, cfg.OutputDir, now, log),
			TypePDF:  NewPDFBackend(cfg.PdfTemplatesPath, cfg.OutputDir, now, log),
		},
	}, nil
}

// Backend returns the backend for docType. Unknown types fail with
// INVALID_CONFIGURATION without touching the filesystem.
func (r *Registry) Backend(docType string) (Backend, error) {
	t, err := ParseType(docType)
	if err != nil {
		return nil, err
	}
	b, ok := r.backends[t]
	if !ok {
		return nil, apperrors.NewInvalidConfigurationError(fmt.Sprintf("no backend registered for %s", t))
	}
	return b, nil
}

// templateDir carries what every backend shares: where templates live, where
// output goes by default and how to log.
type templateDir struct {
	kind      Type
	dir       string
	ext       string
	outputDir string
	category  string
	now       Clock
	logger    logger.Logger
}

func (d templateDir) templatePath(name string) string {
	return filepath.Join(d.dir, name+"."+d.ext)
}

// requireTemplate resolves an existing template. Names are plain file stems:
// anything that could address a file outside the template directory is
// reported as a missing template.
func (d templateDir) requireTemplate(name string) (string, error) {
	if !plainName(name) {
		return "", apperrors.NewNotFoundError("Template", name)
	}
	path := d.templatePath(name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", apperrors.NewNotFoundError("Template", name)
	}
	return path, nil
}

func plainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00") && filepath.Base(name) == name && !filepath.IsAbs(name)
}

// outputPathFor returns the caller's path or {output_dir}/{category}/{name}_{timestamp}.{ext}.
func (d templateDir) outputPathFor(name, outputPath string, artifactExt string) string {
	if outputPath != "" {
		return outputPath
	}
	stamp := d.now().Format("20060102150405")
	return filepath.Join(d.outputDir, d.category, fmt.Sprintf("%s_%s.%s", name, stamp, artifactExt))
}

// sidecarInfo merges {name}.info.json over defaults. Unreadable sidecars are logged and ignored.
func (d templateDir) sidecarInfo(name string, defaults TemplateInfo) TemplateInfo {
	path := filepath.Join(d.dir, name+".info.json")
	extra, err := readSidecar(path)
	if err != nil {
		d.logger.Warn("Failed to read template info sidecar", map[string]interface{}{
			"template": name,
			"type":     string(d.kind),
			"path":     path,
			"error":    err.Error(),
		})
		return defaults
	}
	mergeTop(defaults, extra)
	return defaults
}

// sidecarSchema returns {name}.schema.json merged over the default schema, or
// false when there is no usable sidecar.
func (d templateDir) sidecarSchema(name string) (Schema, bool) {
	path := filepath.Join(d.dir, name+".schema.json")
	extra, err := readSidecar(path)
	if err != nil {
		d.logger.Warn("Failed to read template schema sidecar", map[string]interface{}{
			"template": name,
			"type":     string(d.kind),
			"path":     path,
			"error":    err.Error(),
		})
		return nil, false
	}
	if extra == nil {
		return nil, false
	}
	schema := NewSchema()
	mergeTop(schema, extra)
	return schema, true
}

// listTemplates lists {name}.{ext} files, skipping hidden files, directories
// and anything skip reports.
func (d templateDir) listTemplates(ctx context.Context, b Backend, skip func(string) bool) ([]TemplateEntry, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TemplateEntry{}, nil
		}
		return nil, fmt.Errorf("failed to list templates in %s: %w", d.dir, err)
	}

	suffix := "." + d.ext
	out := []TemplateEntry{}
	for _, e := range entries {
		fileName := e.Name()
		if e.IsDir() || strings.HasPrefix(fileName, ".") || !strings.HasSuffix(fileName, suffix) {
			continue
		}
		if skip != nil && skip(fileName) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := strings.TrimSuffix(fileName, suffix)
		info, err := b.TemplateInfo(ctx, name)
		if err != nil {
			d.logger.Warn("Skipping template without info", map[string]interface{}{
				"template": name,
				"error":    err.Error(),
			})
			continue
		}
		out = append(out, TemplateEntry{Name: name, File: fileName, Type: d.kind, Info: info})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
