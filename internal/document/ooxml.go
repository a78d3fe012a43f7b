package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ooxmlPackage holds every part of an Office Open XML zip in archive order.
type ooxmlPackage struct {
	entries []*packageEntry
	index   map[string]int
}

type packageEntry struct {
	file *zip.File
	data []byte
}

func openPackage(path string) (*ooxmlPackage, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package %s: %w", path, err)
	}
	defer zr.Close()

	pkg := &ooxmlPackage{index: make(map[string]int, len(zr.File))}
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		pkg.index[f.Name] = len(pkg.entries)
		pkg.entries = append(pkg.entries, &packageEntry{file: f, data: data})
	}
	return pkg, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
	}
	return data, nil
}

func (p *ooxmlPackage) part(name string) ([]byte, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.entries[i].data, true
}

func (p *ooxmlPackage) setPart(name string, data []byte) {
	if i, ok := p.index[name]; ok {
		p.entries[i].data = data
	}
}

// partsMatching returns part names matching re, ordered by their trailing number.
func (p *ooxmlPackage) partsMatching(re *regexp.Regexp) []string {
	var names []string
	for _, e := range p.entries {
		if re.MatchString(e.file.Name) {
			names = append(names, e.file.Name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return partNumber(names[i]) < partNumber(names[j])
	})
	return names
}

var trailingNumber = regexp.MustCompile(`(\d+)\.xml$`)

func partNumber(name string) int {
	m := trailingNumber.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// writeFile writes the package to path, creating parent directories.
func (p *ooxmlPackage) writeFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := p.write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (p *ooxmlPackage) write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, e := range p.entries {
		hdr := &zip.FileHeader{
			Name:   e.file.Name,
			Method: e.file.Method,
			// keep the original DOS timestamp fields untouched
			ModifiedTime: e.file.ModifiedTime,
			ModifiedDate: e.file.ModifiedDate,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("failed to add part %s: %w", e.file.Name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write part %s: %w", e.file.Name, err)
		}
	}
	return zw.Close()
}

// ==========================
// XML text node scanning
// ==========================

// nodeKind tells a text element apart from the tab and break elements of a run.
type nodeKind int

const (
	nodeText nodeKind = iota
	nodeTab
	nodeBreak
)

// textNode is one text element (w:t or a:t), or a w:tab / w:br / w:cr of a
// Word run, located by byte offsets in its part.
type textNode struct {
	kind         nodeKind
	start        int64 // '<' of the start tag
	contentStart int64
	contentEnd   int64
	end          int64 // one past '>' of the end tag
	text         string
	run          *runSpan // enclosing run, nil outside a run
}

// runSpan is one run element (w:r or a:r). A run is simple when its direct
// children are only properties, text, tabs and line breaks.
type runSpan struct {
	start, end int64
	depth      int
	complex    bool
}

// textGroup is the text nodes of one paragraph, in document order.
type textGroup struct {
	nodes []textNode
}

func (g textGroup) text() string {
	var b bytes.Buffer
	for _, n := range g.nodes {
		b.WriteString(n.text)
	}
	return b.String()
}

// simpleRunChild reports whether a direct child of a Word run can be folded
// into the collapsed text of a paragraph.
func simpleRunChild(t xml.StartElement) bool {
	switch t.Name.Local {
	case "rPr", "t", "tab", "cr", "lastRenderedPageBreak":
		return true
	case "br":
		return lineBreak(t)
	}
	return false
}

// lineBreak is a w:br without a page or column type.
func lineBreak(t xml.StartElement) bool {
	for _, a := range t.Attr {
		if a.Name.Local == "type" && a.Value != "textWrapping" {
			return false
		}
	}
	return true
}

// scanText walks the raw tokens of an XML part and returns the text elements
// named prefix:t grouped by their innermost enclosing prefix:p element. Text
// elements outside any paragraph get a group of their own. For Word parts the
// tabs and line breaks of a run are returned as nodes too, reading as "\t"
// and "\n".
func scanText(data []byte, prefix string) ([]textGroup, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	withBreaks := prefix == "w"

	var (
		groups  []textGroup
		stack   []*textGroup
		runs    []*runSpan
		current *textNode
		content bytes.Buffer
		depth   int
	)

	add := func(n textNode) {
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			top.nodes = append(top.nodes, n)
		} else {
			groups = append(groups, textGroup{nodes: []textNode{n}})
		}
	}
	openRun := func() *runSpan {
		if len(runs) == 0 {
			return nil
		}
		return runs[len(runs)-1]
	}

	for {
		before := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed xml at offset %d: %w", before, err)
		}
		after := dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			run := openRun()
			directChild := run != nil && depth == run.depth+1
			if directChild && !(t.Name.Space == prefix && simpleRunChild(t)) {
				run.complex = true
			}
			if t.Name.Space != prefix {
				continue
			}
			switch t.Name.Local {
			case "p":
				stack = append(stack, &textGroup{})
			case "r":
				runs = append(runs, &runSpan{start: before, depth: depth})
			case "t":
				current = &textNode{kind: nodeText, start: before, contentStart: after, run: run}
				content.Reset()
			case "tab", "br", "cr":
				if !withBreaks || !directChild || !simpleRunChild(t) {
					continue
				}
				n := textNode{kind: nodeBreak, start: before, contentStart: after, contentEnd: after, end: after, text: "\n", run: run}
				if t.Name.Local == "tab" {
					n.kind, n.text = nodeTab, "\t"
				}
				add(n)
			}
		case xml.CharData:
			if current != nil {
				content.Write(t)
			}
		case xml.EndElement:
			depth--
			if t.Name.Space != prefix {
				continue
			}
			switch t.Name.Local {
			case "t":
				if current == nil {
					continue
				}
				current.contentEnd = before
				current.end = after
				current.text = content.String()
				add(*current)
				current = nil
			case "tab", "br", "cr":
				// <w:tab></w:tab>: stretch the node over its end tag
				if !withBreaks || before == after || len(stack) == 0 {
					continue
				}
				top := stack[len(stack)-1]
				if k := len(top.nodes) - 1; k >= 0 && top.nodes[k].kind != nodeText && top.nodes[k].end == before {
					top.nodes[k].end = after
				}
			case "r":
				if run := openRun(); run != nil {
					run.end = after
					runs = runs[:len(runs)-1]
				}
			case "p":
				if len(stack) == 0 {
					continue
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if len(top.nodes) > 0 {
					groups = append(groups, *top)
				}
			}
		}
	}
	return groups, nil
}

// edit replaces data[start:end] with repl.
type edit struct {
	start, end int64
	repl       []byte
}

// applyEdits applies non-overlapping edits to data.
func applyEdits(data []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return data
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out bytes.Buffer
	out.Grow(len(data))
	var pos int64
	for _, e := range edits {
		out.Write(data[pos:e.start])
		out.Write(e.repl)
		pos = e.end
	}
	out.Write(data[pos:])
	return out.Bytes()
}

func escapeXML(s string) []byte {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.Bytes()
}
