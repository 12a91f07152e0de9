package markitdown

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// Word supports list levels 0 through 8.
	maxListLevel = 8
	maxGridSpan  = 64
)

var ErrMalformedDocument = errors.New("malformed document")

var headingStyle = regexp.MustCompile(`(?i)^heading\s?([1-6])$`)

// docxConverter reads word/document.xml directly: heading styles become ATX
// headings, numbered paragraphs become list items, tables become Markdown
// tables and bold/italic runs are kept.
type docxConverter struct{}

func NewDocxConverter() DocumentConverter {
	return &docxConverter{}
}

func (c *docxConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".docx") || info.MIMEType == docxMIME
}

func (c *docxConverter) Convert(_ context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	br, err := readAllSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	zr, err := zip.NewReader(br, br.Size())
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	files := zipFiles(zr)

	doc, err := readZipXML(files, "word/document.xml")
	if err != nil {
		return nil, err
	}
	d := &docxRenderer{
		rels:     readRelationships(files, "word/_rels/document.xml.rels", "word"),
		formats:  readNumberingFormats(files),
		counters: make(map[string]int),
	}

	blocks := d.blocks(doc.path("document", "body"))
	if d.err != nil {
		return nil, d.err
	}
	res := &Result{Markdown: joinBlocks(blocks)}
	if core, err := readZipXML(files, "docProps/core.xml"); err == nil {
		if title := core.find("title"); title != nil {
			res.Title = strings.TrimSpace(title.Text)
		}
	}
	return res, nil
}

type block struct {
	text     string
	listItem bool
}

// joinBlocks separates blocks by a blank line, except consecutive list items.
func joinBlocks(blocks []block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			if b.listItem && blocks[i-1].listItem {
				sb.WriteString("\n")
			} else {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(b.text)
	}
	return sb.String()
}

type docxRenderer struct {
	rels     map[string]relationship
	formats  map[string]map[int]string
	counters map[string]int
	err      error
}

func (d *docxRenderer) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: docx: "+format, append([]any{ErrMalformedDocument}, args...)...)
	}
}

// boundedAttr parses an optional integer attribute. ok is false when the
// attribute is present but not an integer in [lo, hi].
func boundedAttr(raw string, def, lo, hi int) (int, bool) {
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func (d *docxRenderer) blocks(n *xmlNode) []block {
	var out []block
	for _, c := range n.childrenOrNil() {
		switch c.Name {
		case "p":
			if b, ok := d.paragraph(c); ok {
				out = append(out, b)
			}
		case "tbl":
			if t := d.table(c); t != "" {
				out = append(out, block{text: strings.TrimRight(t, "\n")})
			}
		case "sdt":
			out = append(out, d.blocks(c.child("sdtContent"))...)
		}
	}
	return out
}

func (d *docxRenderer) paragraph(p *xmlNode) (block, bool) {
	pPr := p.child("pPr")
	style := pPr.path("pStyle").attr("val")

	if m := headingStyle.FindStringSubmatch(style); m != nil || strings.EqualFold(style, "Title") {
		level := 1
		if m != nil {
			level, _ = strconv.Atoi(m[1])
		}
		text := strings.TrimSpace(plainText(d.segments(p)))
		if text == "" {
			return block{}, false
		}
		return block{text: strings.Repeat("#", level) + " " + text}, true
	}

	text := strings.TrimSpace(renderSegments(d.segments(p)))
	if text == "" {
		return block{}, false
	}

	if numPr := pPr.child("numPr"); numPr != nil {
		numID := numPr.child("numId").attr("val")
		raw := numPr.child("ilvl").attr("val")
		level, ok := boundedAttr(raw, 0, 0, maxListLevel)
		if !ok {
			d.fail("list level %q outside 0..%d", raw, maxListLevel)
			return block{}, false
		}
		if numID != "" && numID != "0" {
			return block{
				text:     strings.Repeat("  ", level) + d.listMarker(numID, level) + " " + text,
				listItem: true,
			}, true
		}
	}
	if strings.HasPrefix(strings.ToLower(style), "listbullet") {
		return block{text: "- " + text, listItem: true}, true
	}
	return block{text: text}, true
}

func (d *docxRenderer) listMarker(numID string, level int) string {
	format := d.formats[numID][level]
	if format == "" || format == "bullet" || format == "none" {
		return "-"
	}
	prefix := numID + ":"
	for key := range d.counters {
		if strings.HasPrefix(key, prefix) {
			if l, _ := strconv.Atoi(strings.TrimPrefix(key, prefix)); l > level {
				delete(d.counters, key)
			}
		}
	}
	key := prefix + strconv.Itoa(level)
	d.counters[key]++
	return strconv.Itoa(d.counters[key]) + "."
}

type segment struct {
	text   string
	bold   bool
	italic bool
	raw    bool
}

func (d *docxRenderer) segments(n *xmlNode) []segment {
	var out []segment
	for _, c := range n.Children {
		switch c.Name {
		case "r":
			rPr := c.child("rPr")
			out = append(out, segment{
				text:   runText(c),
				bold:   rPr.child("b").on(),
				italic: rPr.child("i").on(),
			})
		case "hyperlink":
			inner := strings.TrimSpace(renderSegments(d.segments(c)))
			rel, ok := d.rels[c.attr("id")]
			if ok && rel.External && inner != "" {
				out = append(out, segment{text: "[" + inner + "](" + rel.Target + ")", raw: true})
			} else {
				out = append(out, segment{text: inner, raw: true})
			}
		case "ins", "smartTag", "fldSimple", "customXml", "sdt", "sdtContent":
			out = append(out, d.segments(c)...)
		}
	}
	return out
}

func runText(r *xmlNode) string {
	var sb strings.Builder
	for _, c := range r.Children {
		switch c.Name {
		case "t":
			sb.WriteString(c.Text)
		case "tab":
			sb.WriteString("\t")
		case "br", "cr":
			sb.WriteString("\n")
		case "noBreakHyphen":
			sb.WriteString("-")
		}
	}
	return sb.String()
}

// renderSegments merges neighbouring runs that share formatting before adding
// emphasis markers.
func renderSegments(segs []segment) string {
	var merged []segment
	for _, s := range segs {
		if s.text == "" {
			continue
		}
		if n := len(merged); n > 0 && !s.raw && !merged[n-1].raw &&
			merged[n-1].bold == s.bold && merged[n-1].italic == s.italic {
			merged[n-1].text += s.text
			continue
		}
		merged = append(merged, s)
	}

	var sb strings.Builder
	for _, s := range merged {
		text := s.text
		switch {
		case s.raw:
		case s.bold && s.italic:
			text = emphasize(text, "***")
		case s.bold:
			text = emphasize(text, "**")
		case s.italic:
			text = emphasize(text, "*")
		}
		sb.WriteString(text)
	}
	return sb.String()
}

func plainText(segs []segment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.text)
	}
	return sb.String()
}

func (d *docxRenderer) table(tbl *xmlNode) string {
	var rows [][]string
	for _, tr := range tbl.children("tr") {
		var row []string
		for _, tc := range tr.children("tc") {
			var parts []string
			for _, b := range d.blocks(tc) {
				parts = append(parts, b.text)
			}
			row = append(row, strings.Join(parts, " "))
			raw := tc.path("tcPr", "gridSpan").attr("val")
			span, ok := boundedAttr(raw, 1, 1, maxGridSpan)
			if !ok {
				d.fail("gridSpan %q outside 1..%d", raw, maxGridSpan)
				return ""
			}
			for i := 1; i < span; i++ {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return ""
	}
	return renderTable(rows)
}

// readNumberingFormats maps numId -> level -> numFmt ("bullet", "decimal", ...).
func readNumberingFormats(files map[string]*zip.File) map[string]map[int]string {
	out := make(map[string]map[int]string)
	root, err := readZipXML(files, "word/numbering.xml")
	if err != nil {
		return out
	}
	numbering := root.child("numbering")

	abstract := make(map[string]map[int]string)
	for _, an := range numbering.children("abstractNum") {
		levels := make(map[int]string)
		for _, lvl := range an.children("lvl") {
			ilvl, ok := boundedAttr(lvl.attr("ilvl"), 0, 0, maxListLevel)
			if !ok {
				continue
			}
			levels[ilvl] = lvl.child("numFmt").attr("val")
		}
		abstract[an.attr("abstractNumId")] = levels
	}
	for _, num := range numbering.children("num") {
		if levels, ok := abstract[num.child("abstractNumId").attr("val")]; ok {
			out[num.attr("numId")] = levels
		}
	}
	return out
}

func (n *xmlNode) childrenOrNil() []*xmlNode {
	if n == nil {
		return nil
	}
	return n.Children
}
