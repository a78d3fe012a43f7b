package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "docgen-workers/internal/common/errors"
)

// ==========================
// Generate
// ==========================

func TestDocxGenerate_InvoiceAcrossRuns(t *testing.T) {
	docx, _, _, root := createTestBackends(t)
	writeDocx(t, filepath.Join(docx.dir, "invoice.docx"), wordBody(
		wordParagraph("Invoice {{num", "ber}} for ", "{{customer}}"),
		wordParagraph("Static line"),
	))

	out := filepath.Join(root, "out", "invoice.docx")
	path, err := docx.Generate(context.Background(), "invoice", map[string]interface{}{
		"number":   "INV-7",
		"customer": "ACME & Sons",
	}, out)
	require.NoError(t, err)
	assert.Equal(t, out, path)

	doc := readZipPart(t, out, "word/document.xml")
	assert.Contains(t, doc, `<w:t xml:space="preserve">Invoice INV-7 for ACME &amp; Sons</w:t>`)
	assert.NotContains(t, doc, "{{")
	assert.Contains(t, doc, "<w:t>Static line</w:t>")

	texts, err := docxTexts(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice INV-7 for ACME & Sons", "Static line"}, texts)
}

func TestDocxGenerate_CollapsesRunsKeepingTabsAndBreaks(t *testing.T) {
	tests := []struct {
		name     string
		runs     string
		wantRuns string
		wantText string
	}{
		{
			name:     "tab-only middle run",
			runs:     `<w:r><w:t>Dear {{name}},</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>total {{amount}}.</w:t></w:r>`,
			wantRuns: `<w:r><w:t xml:space="preserve">Dear Alice,</w:t><w:tab/><w:t xml:space="preserve">total $10.</w:t></w:r>`,
			wantText: "Dear Alice,\ttotal $10.",
		},
		{
			name:     "line break inside a run",
			runs:     `<w:r><w:rPr><w:b/></w:rPr><w:t>{{street}}</w:t><w:br/><w:t>{{city}}</w:t></w:r>`,
			wantRuns: `<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Main St</w:t><w:br/><w:t xml:space="preserve">Springfield</w:t></w:r>`,
			wantText: "Main St\nSpringfield",
		},
		{
			name:     "leading tab run",
			runs:     `<w:r><w:tab></w:tab></w:r><w:r><w:t>{{name}}</w:t></w:r>`,
			wantRuns: `<w:r><w:tab/><w:t xml:space="preserve">Alice</w:t></w:r>`,
			wantText: "\tAlice",
		},
		{
			name:     "page break run is kept",
			runs:     `<w:r><w:t>{{name}}</w:t></w:r><w:r><w:br w:type="page"/><w:t>end</w:t></w:r>`,
			wantRuns: `<w:r><w:t xml:space="preserve">Aliceend</w:t></w:r><w:r><w:br w:type="page"/></w:r>`,
			wantText: "Aliceend",
		},
	}

	data := map[string]interface{}{
		"name":   "Alice",
		"amount": "$10",
		"street": "Main St",
		"city":   "Springfield",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docx, _, _, root := createTestBackends(t)
			writeDocx(t, filepath.Join(docx.dir, "letter.docx"), wordBody(`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>`+tt.runs+`</w:p>`))

			out := filepath.Join(root, "out", "letter.docx")
			_, err := docx.Generate(context.Background(), "letter", data, out)
			require.NoError(t, err)

			doc := readZipPart(t, out, "word/document.xml")
			assert.Contains(t, doc, `<w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>`+tt.wantRuns+`</w:p>`)

			texts, err := docxTexts(out)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantText}, texts)
		})
	}
}

func TestDocxGenerate_Deterministic(t *testing.T) {
	docx, _, _, root := createTestBackends(t)
	writeDocx(t, filepath.Join(docx.dir, "invoice.docx"), wordBody(wordParagraph("Invoice {{number}}")))
	data := map[string]interface{}{"number": "INV-7"}

	first, err := docx.Generate(context.Background(), "invoice", data, filepath.Join(root, "a.docx"))
	require.NoError(t, err)
	second, err := docx.Generate(context.Background(), "invoice", data, filepath.Join(root, "b.docx"))
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "equal inputs must give identical bytes")
}

func TestDocxGenerate_LeavesUnchangedParagraphsAlone(t *testing.T) {
	docx, _, _, root := createTestBackends(t)
	body := wordBody(
		wordParagraph("Hello ", "{{unknown}}"),
		wordParagraph("No markers"),
	)
	writeDocx(t, filepath.Join(docx.dir, "letter.docx"), body)

	out := filepath.Join(root, "out", "letter.docx")
	_, err := docx.Generate(context.Background(), "letter", map[string]interface{}{"name": "x"}, out)
	require.NoError(t, err)

	assert.Equal(t, body, readZipPart(t, out, "word/document.xml"))
}

func TestDocxGenerate_HeadersFootersAndTables(t *testing.T) {
	docx, _, _, root := createTestBackends(t)
	table := `<w:tbl><w:tr><w:tc>` + wordParagraph("{{cell}}") + `</w:tc></w:tr></w:tbl>`
	writeDocx(t, filepath.Join(docx.dir, "report.docx"), wordBody(table),
		zipPart{name: "word/header1.xml", body: `<w:hdr ` + wordNS + `>` + wordParagraph("Company {{company}}") + `</w:hdr>`},
		zipPart{name: "word/footer1.xml", body: `<w:ftr ` + wordNS + `>` + wordParagraph("Page of {{company}}") + `</w:ftr>`},
	)

	out := filepath.Join(root, "out", "report.docx")
	_, err := docx.Generate(context.Background(), "report", map[string]interface{}{"cell": "42", "company": "ACME"}, out)
	require.NoError(t, err)

	assert.Contains(t, readZipPart(t, out, "word/document.xml"), ">42</w:t>")
	assert.Contains(t, readZipPart(t, out, "word/header1.xml"), ">Company ACME</w:t>")
	assert.Contains(t, readZipPart(t, out, "word/footer1.xml"), ">Page of ACME</w:t>")
}

func TestDocxGenerate_DefaultOutputPath(t *testing.T) {
	docx, _, _, root := createTestBackends(t)
	writeDocx(t, filepath.Join(docx.dir, "memo.docx"), wordBody(wordParagraph("{{a}}")))

	path, err := docx.Generate(context.Background(), "memo", map[string]interface{}{"a": "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "output", "documents", "memo_20240315093000.docx"), path)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDocxGenerate_TemplateNotFound(t *testing.T) {
	docx, _, _, _ := createTestBackends(t)

	_, err := docx.Generate(context.Background(), "missing", nil, "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeNotFound))
}

// ==========================
// Info, schema, listing
// ==========================

func TestDocxTemplateInfo(t *testing.T) {
	docx, _, _, _ := createTestBackends(t)
	writeDocx(t, filepath.Join(docx.dir, "contract.docx"), wordBody(wordParagraph("x")),
		zipPart{name: "docProps/app.xml", body: `<?xml version="1.0"?><Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"><Pages>3</Pages></Properties>`},
	)

	info, err := docx.TemplateInfo(context.Background(), "contract")
	require.NoError(t, err)
	assert.Equal(t, "contract", info["name"])
	assert.Equal(t, "docx", info["type"])
	assert.Equal(t, "Word template: contract", info["description"])
	assert.Equal(t, 3, info["pages"])

	writeFile(t, filepath.Join(docx.dir, "contract.info.json"), `{"description":"Service contract","owner":"legal"}`)
	info, err = docx.TemplateInfo(context.Background(), "contract")
	require.NoError(t, err)
	assert.Equal(t, "Service contract", info["description"])
	assert.Equal(t, "legal", info["owner"])
	assert.Equal(t, 3, info["pages"])
}

func TestDocxTemplateInfo_BrokenSidecarFallsBack(t *testing.T) {
	docx, _, _, _ := createTestBackends(t)
	writeDocx(t, filepath.Join(docx.dir, "memo.docx"), wordBody(wordParagraph("x")))
	writeFile(t, filepath.Join(docx.dir, "memo.info.json"), `{not json`)

	info, err := docx.TemplateInfo(context.Background(), "memo")
	require.NoError(t, err)
	assert.Equal(t, "Word template: memo", info["description"])
	assert.Equal(t, 0, info["pages"])
}

func TestDocxTemplateSchema(t *testing.T) {
	docx, _, _, _ := createTestBackends(t)
	writeDocx(t, filepath.Join(docx.dir, "invoice.docx"), wordBody(
		wordParagraph("Invoice {{num", "ber}}"),
		wordParagraph("{{customer}} / {{number}}"),
	))

	schema, err := docx.TemplateSchema(context.Background(), "invoice")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "number"}, schema.Required())

	writeFile(t, filepath.Join(docx.dir, "invoice.schema.json"), `{"required":["number"],"properties":{"number":{"type":"string","pattern":"^INV-"}}}`)
	schema, err = docx.TemplateSchema(context.Background(), "invoice")
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"number"}, schema.Required())
}

func TestDocxTemplateSchema_UnreadableTemplateDegrades(t *testing.T) {
	docx, _, _, _ := createTestBackends(t)
	writeFile(t, filepath.Join(docx.dir, "broken.docx"), "not a zip")

	schema, err := docx.TemplateSchema(context.Background(), "broken")
	require.NoError(t, err)
	assert.Empty(t, schema.Required())
}

func TestDocxListTemplates(t *testing.T) {
	docx, _, _, _ := createTestBackends(t)

	entries, err := docx.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	writeDocx(t, filepath.Join(docx.dir, "zeta.docx"), wordBody(wordParagraph("z")))
	writeDocx(t, filepath.Join(docx.dir, "alpha.docx"), wordBody(wordParagraph("a")))
	writeDocx(t, filepath.Join(docx.dir, ".hidden.docx"), wordBody(wordParagraph("h")))
	writeFile(t, filepath.Join(docx.dir, "alpha.info.json"), `{}`)
	require.NoError(t, os.MkdirAll(filepath.Join(docx.dir, "sub.docx"), 0o755))

	entries, err = docx.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "alpha.docx", entries[0].File)
	assert.Equal(t, TypeDocx, entries[0].Type)
	assert.Equal(t, "zeta", entries[1].Name)
}
