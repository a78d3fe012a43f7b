package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"

	"docgen-workers/internal/common/logger"
)

var pptxSlideParts = regexp.MustCompile(`^ppt/slides/slide\d+\.xml$`)

// PptxBackend fills PowerPoint templates.
type PptxBackend struct {
	templateDir
}

func NewPptxBackend(templatesDir, outputDir string, now Clock, log logger.Logger) *PptxBackend {
	return &PptxBackend{templateDir{
		kind:      TypePptx,
		dir:       templatesDir,
		ext:       "pptx",
		outputDir: outputDir,
		category:  "presentations",
		now:       now,
		logger:    log.WithFields(map[string]interface{}{"backend": "pptx"}),
	}}
}

func (b *PptxBackend) Type() Type        { return TypePptx }
func (b *PptxBackend) Extension() string { return "pptx" }

func (b *PptxBackend) ListTemplates(ctx context.Context) ([]TemplateEntry, error) {
	return b.listTemplates(ctx, b, nil)
}

// TemplateInfo always recounts the slides so a sidecar cannot go stale on them.
func (b *PptxBackend) TemplateInfo(ctx context.Context, name string) (TemplateInfo, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return nil, err
	}

	info := b.sidecarInfo(name, TemplateInfo{
		"name":        name,
		"type":        "pptx",
		"description": fmt.Sprintf("PowerPoint template: %s", name),
		"slides":      0,
	})

	pkg, err := openPackage(path)
	if err != nil {
		b.logger.Warn("Failed to open template for slide count", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
		return info, nil
	}
	info["slides"] = pptxSlideCount(pkg)
	return info, nil
}

func (b *PptxBackend) TemplateSchema(ctx context.Context, name string) (Schema, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return nil, err
	}
	if schema, ok := b.sidecarSchema(name); ok {
		return schema, nil
	}

	texts, err := pptxTexts(path)
	if err != nil {
		b.logger.Warn("Failed to infer template schema", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
		return NewSchema(), nil
	}
	return InferSchema(texts), nil
}

func (b *PptxBackend) Generate(ctx context.Context, name string, data map[string]interface{}, outputPath string) (string, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return "", err
	}
	pkg, err := openPackage(path)
	if err != nil {
		return "", err
	}

	for _, partName := range pkg.partsMatching(pptxSlideParts) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, _ := pkg.part(partName)
		updated, err := fillPptxPart(raw, data)
		if err != nil {
			return "", fmt.Errorf("failed to fill %s: %w", partName, err)
		}
		pkg.setPart(partName, updated)
	}

	out := b.outputPathFor(name, outputPath, "pptx")
	if err := pkg.writeFile(out); err != nil {
		return "", err
	}

	b.logger.Debug("Generated presentation", map[string]interface{}{
		"template": name,
		"output":   out,
	})
	return out, nil
}

// fillPptxPart resolves every a:t run on its own; run styling is untouched.
func fillPptxPart(raw []byte, data map[string]interface{}) ([]byte, error) {
	groups, err := scanText(raw, "a")
	if err != nil {
		return nil, err
	}

	var edits []edit
	for _, g := range groups {
		for _, n := range g.nodes {
			if !hasPlaceholderMarkers(n.text) {
				continue
			}
			resolved := Resolve(n.text, data)
			if resolved == n.text {
				continue
			}
			edits = append(edits, edit{start: n.contentStart, end: n.contentEnd, repl: escapeXML(resolved)})
		}
	}
	return applyEdits(raw, edits), nil
}

func pptxTexts(path string) ([]string, error) {
	pkg, err := openPackage(path)
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, partName := range pkg.partsMatching(pptxSlideParts) {
		raw, _ := pkg.part(partName)
		groups, err := scanText(raw, "a")
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			for _, n := range g.nodes {
				texts = append(texts, n.text)
			}
		}
	}
	return texts, nil
}

// pptxSlideCount counts p:sldId entries of the presentation part, falling
// back to the number of slide parts.
func pptxSlideCount(pkg *ooxmlPackage) int {
	if raw, ok := pkg.part("ppt/presentation.xml"); ok {
		dec := xml.NewDecoder(bytes.NewReader(raw))
		count := 0
		for {
			tok, err := dec.RawToken()
			if err == io.EOF {
				return count
			}
			if err != nil {
				break
			}
			if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "sldId" {
				count++
			}
		}
	}
	return len(pkg.partsMatching(pptxSlideParts))
}
