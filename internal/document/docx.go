package document

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"docgen-workers/internal/common/logger"
)

const docxMainPart = "word/document.xml"

var docxHeaderFooterParts = regexp.MustCompile(`^word/(header|footer)\d*\.xml$`)

// DocxBackend fills Word templates.
type DocxBackend struct {
	templateDir
}

func NewDocxBackend(templatesDir, outputDir string, now Clock, log logger.Logger) *DocxBackend {
	return &DocxBackend{templateDir{
		kind:      TypeDocx,
		dir:       templatesDir,
		ext:       "docx",
		outputDir: outputDir,
		category:  "documents",
		now:       now,
		logger:    log.WithFields(map[string]interface{}{"backend": "docx"}),
	}}
}

func (b *DocxBackend) Type() Type        { return TypeDocx }
func (b *DocxBackend) Extension() string { return "docx" }

func (b *DocxBackend) ListTemplates(ctx context.Context) ([]TemplateEntry, error) {
	return b.listTemplates(ctx, b, nil)
}

func (b *DocxBackend) TemplateInfo(ctx context.Context, name string) (TemplateInfo, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return nil, err
	}

	info := TemplateInfo{
		"name":        name,
		"type":        "docx",
		"description": fmt.Sprintf("Word template: %s", name),
		"pages":       0,
	}
	if pkg, err := openPackage(path); err == nil {
		info["pages"] = docxPageCount(pkg)
	} else {
		b.logger.Warn("Failed to open template for page count", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
	}
	return b.sidecarInfo(name, info), nil
}

func (b *DocxBackend) TemplateSchema(ctx context.Context, name string) (Schema, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return nil, err
	}
	if schema, ok := b.sidecarSchema(name); ok {
		return schema, nil
	}

	texts, err := docxTexts(path)
	if err != nil {
		b.logger.Warn("Failed to infer template schema", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
		return NewSchema(), nil
	}
	return InferSchema(texts), nil
}

func (b *DocxBackend) Generate(ctx context.Context, name string, data map[string]interface{}, outputPath string) (string, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return "", err
	}
	pkg, err := openPackage(path)
	if err != nil {
		return "", err
	}

	for _, partName := range docxTextParts(pkg) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, _ := pkg.part(partName)
		updated, err := fillDocxPart(raw, data)
		if err != nil {
			return "", fmt.Errorf("failed to fill %s: %w", partName, err)
		}
		pkg.setPart(partName, updated)
	}

	out := b.outputPathFor(name, outputPath, "docx")
	if err := pkg.writeFile(out); err != nil {
		return "", err
	}

	b.logger.Debug("Generated document", map[string]interface{}{
		"template": name,
		"output":   out,
	})
	return out, nil
}

// docxTextParts returns the body part followed by headers and footers.
func docxTextParts(pkg *ooxmlPackage) []string {
	parts := []string{}
	if _, ok := pkg.part(docxMainPart); ok {
		parts = append(parts, docxMainPart)
	}
	return append(parts, pkg.partsMatching(docxHeaderFooterParts)...)
}

// fillDocxPart resolves placeholders paragraph by paragraph. A changed
// paragraph collapses into the run of its first node: the resolved text is
// written there and the later runs holding its text are removed. Runs with
// content other than text, tabs and line breaks keep that content.
func fillDocxPart(raw []byte, data map[string]interface{}) ([]byte, error) {
	groups, err := scanText(raw, "w")
	if err != nil {
		return nil, err
	}

	var edits []edit
	for _, g := range groups {
		text := g.text()
		if !hasPlaceholderMarkers(text) {
			continue
		}
		resolved := Resolve(text, data)
		if resolved == text {
			continue
		}

		first := g.nodes[0]
		edits = append(edits, edit{start: first.start, end: first.end, repl: wordRunContent(resolved)})

		removed := map[*runSpan]bool{}
		for _, n := range g.nodes[1:] {
			run := n.run
			if run == nil || run == first.run || run.complex {
				edits = append(edits, edit{start: n.start, end: n.end})
				continue
			}
			if !removed[run] {
				removed[run] = true
				edits = append(edits, edit{start: run.start, end: run.end})
			}
		}
	}
	return applyEdits(raw, edits), nil
}

// wordRunContent renders text as run content, turning tabs and newlines back
// into w:tab and w:br.
func wordRunContent(text string) []byte {
	var b bytes.Buffer
	var chunk strings.Builder
	flush := func(force bool) {
		if chunk.Len() == 0 && !force {
			return
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		b.Write(escapeXML(chunk.String()))
		b.WriteString(`</w:t>`)
		chunk.Reset()
	}

	for _, r := range text {
		switch r {
		case '\t':
			flush(false)
			b.WriteString(`<w:tab/>`)
		case '\n':
			flush(false)
			b.WriteString(`<w:br/>`)
		default:
			chunk.WriteRune(r)
		}
	}
	flush(b.Len() == 0)
	return b.Bytes()
}

func docxTexts(path string) ([]string, error) {
	pkg, err := openPackage(path)
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, partName := range docxTextParts(pkg) {
		raw, _ := pkg.part(partName)
		groups, err := scanText(raw, "w")
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			texts = append(texts, g.text())
		}
	}
	return texts, nil
}

type appProperties struct {
	Pages int `xml:"Pages"`
}

func docxPageCount(pkg *ooxmlPackage) int {
	raw, ok := pkg.part("docProps/app.xml")
	if !ok {
		return 0
	}
	var props appProperties
	if err := xml.Unmarshal(raw, &props); err != nil {
		return 0
	}
	return props.Pages
}
