package document

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docgen-workers/internal/common/logger"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type zipPart struct {
	name string
	body string
}

func writeZip(t *testing.T, path string, parts []zipPart) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readZipPart(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(b)
	}
	t.Fatalf("part %s not found in %s", name, path)
	return ""
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func wordBody(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + wordNS + `><w:body>` + strings.Join(paragraphs, "") + `</w:body></w:document>`
}

// wordParagraph builds a paragraph with one run per text.
func wordParagraph(texts ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, t := range texts {
		b.WriteString(`<w:r><w:rPr><w:b/></w:rPr><w:t>` + t + `</w:t></w:r>`)
	}
	b.WriteString("</w:p>")
	return b.String()
}

func writeDocx(t *testing.T, path string, body string, extra ...zipPart) {
	t.Helper()
	parts := []zipPart{
		{name: "[Content_Types].xml", body: `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{name: "word/document.xml", body: body},
	}
	writeZip(t, path, append(parts, extra...))
}

const drawingNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

func slideXML(runs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><p:sld ` + drawingNS + `><p:cSld><p:spTree><p:sp><p:txBody><a:p>`)
	for _, r := range runs {
		b.WriteString(`<a:r><a:rPr lang="en-US"/><a:t>` + r + `</a:t></a:r>`)
	}
	b.WriteString(`</a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func presentationXML(slides int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><p:presentation ` + drawingNS + `><p:sldIdLst>`)
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 2+i)
	}
	b.WriteString(`</p:sldIdLst></p:presentation>`)
	return b.String()
}

func writePptx(t *testing.T, path string, slides ...string) {
	t.Helper()
	parts := []zipPart{
		{name: "[Content_Types].xml", body: `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{name: "ppt/presentation.xml", body: presentationXML(len(slides))},
	}
	for i, s := range slides {
		parts = append(parts, zipPart{name: fmt.Sprintf("ppt/slides/slide%d.xml", i+1), body: s})
	}
	writeZip(t, path, parts)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func createTestBackends(t *testing.T) (docx *DocxBackend, pptx *PptxBackend, pdf *PDFBackend, root string) {
	t.Helper()
	root = t.TempDir()
	log := logger.NewTestLogger(t)
	docx = NewDocxBackend(filepath.Join(root, "templates", "docx"), filepath.Join(root, "output"), fixedClock, log)
	pptx = NewPptxBackend(filepath.Join(root, "templates", "pptx"), filepath.Join(root, "output"), fixedClock, log)
	pdf = NewPDFBackend(filepath.Join(root, "templates", "pdf"), filepath.Join(root, "output"), fixedClock, log)
	return docx, pptx, pdf, root
}
