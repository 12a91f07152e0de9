package markitdown

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const pptxMIME = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

var (
	slidePart    = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	nonWordChars = regexp.MustCompile(`\W`)
)

type pptxConverter struct{}

func NewPptxConverter() DocumentConverter {
	return &pptxConverter{}
}

func (c *pptxConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".pptx") || info.MIMEType == pptxMIME
}

func (c *pptxConverter) Convert(ctx context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	br, err := readAllSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("read pptx: %w", err)
	}
	zr, err := zip.NewReader(br, br.Size())
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	files := zipFiles(zr)

	type slide struct {
		number int
		name   string
	}
	var slides []slide
	for name := range files {
		if m := slidePart.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{number: n, name: name})
		}
	}
	if len(slides) == 0 {
		return nil, fmt.Errorf("open pptx: no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var sb strings.Builder
	for i, s := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root, err := readZipXML(files, s.name)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf("\n\n<!-- Slide number: %d -->\n", i+1))
		renderShapes(&sb, root.path("sld", "cSld", "spTree"))

		relsName := path.Join(path.Dir(s.name), "_rels", path.Base(s.name)+".rels")
		for _, rel := range readRelationships(files, relsName, path.Dir(s.name)) {
			if !strings.HasSuffix(rel.Type, "/notesSlide") {
				continue
			}
			if notes := notesText(files, rel.Target); notes != "" {
				sb.WriteString("\n\n### Notes:\n")
				sb.WriteString(notes)
			}
		}
	}

	res := &Result{Markdown: sb.String()}
	if core, err := readZipXML(files, "docProps/core.xml"); err == nil {
		if title := core.find("title"); title != nil {
			res.Title = strings.TrimSpace(title.Text)
		}
	}
	return res, nil
}

func renderShapes(sb *strings.Builder, tree *xmlNode) {
	for _, shape := range tree.childrenOrNil() {
		switch shape.Name {
		case "sp":
			text := textBody(shape.child("txBody"))
			if text == "" {
				continue
			}
			switch shape.path("nvSpPr", "nvPr", "ph").attr("type") {
			case "title", "ctrTitle":
				sb.WriteString("# " + strings.TrimLeft(text, " \t\n") + "\n")
			default:
				sb.WriteString(text + "\n")
			}
		case "pic":
			props := shape.path("nvPicPr", "cNvPr")
			alt := props.attr("descr")
			if alt == "" {
				alt = props.attr("name")
			}
			filename := nonWordChars.ReplaceAllString(props.attr("name"), "") + ".jpg"
			sb.WriteString("\n![" + alt + "](" + filename + ")\n")
		case "graphicFrame":
			if tbl := shape.find("tbl"); tbl != nil {
				var rows [][]string
				for _, tr := range tbl.children("tr") {
					var row []string
					for _, tc := range tr.children("tc") {
						row = append(row, textBody(tc.child("txBody")))
					}
					rows = append(rows, row)
				}
				if len(rows) > 0 {
					sb.WriteString("\n" + renderTable(rows) + "\n")
				}
			}
		case "grpSp":
			renderShapes(sb, shape)
		}
	}
}

// textBody joins the paragraphs of a DrawingML text body with newlines.
func textBody(body *xmlNode) string {
	var paragraphs []string
	for _, p := range body.children("p") {
		var sb strings.Builder
		for _, c := range p.Children {
			switch c.Name {
			case "r", "fld":
				if t := c.child("t"); t != nil {
					sb.WriteString(t.Text)
				}
			case "br":
				sb.WriteString("\n")
			}
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n"))
}

func notesText(files map[string]*zip.File, name string) string {
	root, err := readZipXML(files, name)
	if err != nil {
		return ""
	}
	var parts []string
	for _, shape := range root.path("notes", "cSld", "spTree").childrenOrNil() {
		if shape.Name != "sp" || shape.path("nvSpPr", "nvPr", "ph").attr("type") != "body" {
			continue
		}
		if text := textBody(shape.child("txBody")); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
