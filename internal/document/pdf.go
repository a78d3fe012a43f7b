package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"docgen-workers/internal/common/logger"
)

// pdfTemplate is the JSON section list a pdf template file holds.
type pdfTemplate struct {
	Sections []pdfSection `json:"sections"`
}

// pdfSection is one block of a pdf template. Only tables use Header and Rows.
type pdfSection struct {
	Type    string           `json:"type"`
	Content interface{}      `json:"content,omitempty"`
	Header  []interface{}    `json:"header,omitempty"`
	Rows    *[][]interface{} `json:"rows,omitempty"`
}

// Letter page, 1 inch margins, millimetre units.
const (
	pdfMargin     = 25.4
	pdfLineHeight = 5.5
	pdfCellPad    = 2.0
)

type rgb struct{ r, g, b int }

var (
	colorGrey       = rgb{128, 128, 128}
	colorWhiteSmoke = rgb{245, 245, 245}
	colorBeige      = rgb{245, 245, 220}
	colorBlack      = rgb{0, 0, 0}
)

// PDFBackend renders JSON section templates into pdf files.
type PDFBackend struct {
	templateDir
}

func NewPDFBackend(templatesDir, outputDir string, now Clock, log logger.Logger) *PDFBackend {
	return &PDFBackend{templateDir{
		kind:      TypePDF,
		dir:       templatesDir,
		ext:       "json",
		outputDir: outputDir,
		category:  "pdfs",
		now:       now,
		logger:    log.WithFields(map[string]interface{}{"backend": "pdf"}),
	}}
}

func (b *PDFBackend) Type() Type        { return TypePDF }
func (b *PDFBackend) Extension() string { return "pdf" }

func isPDFSidecar(fileName string) bool {
	return strings.HasSuffix(fileName, ".schema.json") || strings.HasSuffix(fileName, ".info.json")
}

func (b *PDFBackend) ListTemplates(ctx context.Context) ([]TemplateEntry, error) {
	return b.listTemplates(ctx, b, isPDFSidecar)
}

func (b *PDFBackend) TemplateInfo(ctx context.Context, name string) (TemplateInfo, error) {
	if _, err := b.requireTemplate(name); err != nil {
		return nil, err
	}
	return b.sidecarInfo(name, TemplateInfo{
		"name":        name,
		"type":        "pdf",
		"description": fmt.Sprintf("PDF template: %s", name),
		"pages":       0,
	}), nil
}

func (b *PDFBackend) TemplateSchema(ctx context.Context, name string) (Schema, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return nil, err
	}
	if schema, ok := b.sidecarSchema(name); ok {
		return schema, nil
	}

	tpl, err := loadPDFTemplate(path)
	if err != nil {
		b.logger.Warn("Failed to infer template schema", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
		return NewSchema(), nil
	}
	return InferSchema(tpl.texts()), nil
}

func (b *PDFBackend) Generate(ctx context.Context, name string, data map[string]interface{}, outputPath string) (string, error) {
	path, err := b.requireTemplate(name)
	if err != nil {
		return "", err
	}
	tpl, err := loadPDFTemplate(path)
	if err != nil {
		return "", err
	}

	out := b.outputPathFor(name, outputPath, "pdf")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	doc := newPDFDocument(b.now)
	for _, section := range tpl.Sections {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		doc.render(section, data)
	}

	if err := doc.pdf.OutputFileAndClose(out); err != nil {
		return "", fmt.Errorf("failed to write pdf %s: %w", out, err)
	}

	b.logger.Debug("Generated pdf", map[string]interface{}{
		"template": name,
		"output":   out,
		"sections": len(tpl.Sections),
	})
	return out, nil
}

func loadPDFTemplate(path string) (*pdfTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	var tpl pdfTemplate
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	return &tpl, nil
}

// texts returns every string that may hold placeholders.
func (t *pdfTemplate) texts() []string {
	var out []string
	for _, s := range t.Sections {
		if s.Content != nil {
			out = append(out, ValueText(s.Content))
		}
		if s.Type != "table" {
			continue
		}
		for _, cell := range s.Header {
			out = append(out, ValueText(cell))
		}
		if s.Rows != nil {
			for _, row := range *s.Rows {
				for _, cell := range row {
					out = append(out, ValueText(cell))
				}
			}
		}
	}
	return out
}

// ==========================
// Rendering
// ==========================

type pdfDocument struct {
	pdf       *fpdf.Fpdf
	translate func(string) string
	width     float64
}

func newPDFDocument(now Clock) *pdfDocument {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	// fixed metadata keeps output byte-identical for equal inputs
	pdf.SetCreationDate(now().UTC())
	pdf.SetCatalogSort(true)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	return &pdfDocument{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		width:     pageW - 2*pdfMargin,
	}
}

func (d *pdfDocument) render(s pdfSection, data map[string]interface{}) {
	text := func(v interface{}) string {
		return d.translate(Resolve(ValueText(v), data))
	}

	switch s.Type {
	case "title":
		d.block(text(s.Content), 24, "B", "C", 10, 4)
	case "heading":
		d.block(text(s.Content), 18, "B", "L", 8, 4)
	case "subheading":
		d.block(text(s.Content), 14, "B", "L", 7, 2)
	case "paragraph":
		d.block(text(s.Content), 11, "", "L", pdfLineHeight, 4)
	case "table":
		if s.Rows == nil {
			return
		}
		var header []string
		for _, cell := range s.Header {
			header = append(header, text(cell))
		}
		rows := make([][]string, 0, len(*s.Rows))
		for _, row := range *s.Rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, text(cell))
			}
			rows = append(rows, cells)
		}
		d.table(header, rows)
	}
}

func (d *pdfDocument) block(txt string, size float64, style, align string, lineH, after float64) {
	d.pdf.SetFont("Helvetica", style, size)
	d.setText(colorBlack)
	d.pdf.MultiCell(d.width, lineH, txt, "", align, false)
	d.pdf.Ln(after)
}

func (d *pdfDocument) table(header []string, rows [][]string) {
	cols := len(header)
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return
	}
	colW := d.width / float64(cols)

	d.pdf.SetDrawColor(colorBlack.r, colorBlack.g, colorBlack.b)
	d.pdf.SetLineWidth(0.3)

	if len(header) > 0 {
		d.pdf.SetFont("Helvetica", "B", 11)
		d.row(header, cols, colW, colorGrey, colorWhiteSmoke)
	}
	d.pdf.SetFont("Helvetica", "", 11)
	for _, r := range rows {
		d.row(r, cols, colW, colorBeige, colorBlack)
	}
	d.pdf.Ln(4)
}

// row draws one table row with every cell as tall as its tallest wrapped text.
func (d *pdfDocument) row(cells []string, cols int, colW float64, fill, fg rgb) {
	lines := 1
	for _, c := range cells {
		if n := len(d.pdf.SplitLines([]byte(c), colW-2*pdfCellPad)); n > lines {
			lines = n
		}
	}
	h := float64(lines)*pdfLineHeight + 2*pdfCellPad

	_, pageH := d.pdf.GetPageSize()
	x, y := d.pdf.GetXY()
	if y+h > pageH-pdfMargin {
		d.pdf.AddPage()
		x, y = d.pdf.GetXY()
	}

	d.pdf.SetFillColor(fill.r, fill.g, fill.b)
	for i := 0; i < cols; i++ {
		cx := x + float64(i)*colW
		d.pdf.Rect(cx, y, colW, h, "FD")

		c := ""
		if i < len(cells) {
			c = cells[i]
		}
		d.setText(fg)
		d.pdf.SetXY(cx+pdfCellPad, y+pdfCellPad)
		d.pdf.MultiCell(colW-2*pdfCellPad, pdfLineHeight, c, "", "C", false)
	}
	d.pdf.SetXY(x, y+h)
	d.setText(colorBlack)
}

func (d *pdfDocument) setText(c rgb) {
	d.pdf.SetTextColor(c.r, c.g, c.b)
}
