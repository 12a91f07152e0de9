package markitdown

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)

type htmlConverter struct{}

func NewHTMLConverter() DocumentConverter {
	return &htmlConverter{}
}

func (c *htmlConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".html", ".htm", ".xhtml") || hasMIMEPrefix(info, "text/html", "application/xhtml")
}

func (c *htmlConverter) Convert(_ context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return HTMLToMarkdown(doc), nil
}

// HTMLToMarkdown renders the <body> of doc (or the whole tree when there is
// none). The <title> becomes Result.Title.
func HTMLToMarkdown(doc *html.Node) *Result {
	res := &Result{}
	if title := findElement(doc, atom.Title); title != nil {
		res.Title = strings.TrimSpace(textContent(title))
	}
	root := findElement(doc, atom.Body)
	if root == nil {
		root = doc
	}
	w := &htmlWriter{}
	res.Markdown = normalizeMarkdown(trimCollapsedSpace(w.children(root)))
	return res
}

// trimCollapsedSpace drops the single space that whitespace collapsing leaves
// at the start of lines, outside fenced code.
func trimCollapsedSpace(s string) string {
	lines := strings.Split(s, "\n")
	fenced := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		if strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "  ") {
			lines[i] = line[1:]
		}
	}
	return strings.Join(lines, "\n")
}

type htmlWriter struct{}

func (w *htmlWriter) children(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(w.node(c))
	}
	return sb.String()
}

func (w *htmlWriter) node(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return whitespaceRun.ReplaceAllString(n.Data, " ")
	case html.DocumentNode:
		return w.children(n)
	case html.ElementNode:
	default:
		return ""
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head, atom.Iframe, atom.Svg:
		return ""
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		text := strings.TrimSpace(whitespaceRun.ReplaceAllString(w.children(n), " "))
		if text == "" {
			return ""
		}
		return "\n\n" + strings.Repeat("#", level) + " " + text + "\n\n"
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main,
		atom.Nav, atom.Aside, atom.Figure, atom.Figcaption, atom.Form, atom.Fieldset, atom.Address,
		atom.Dl, atom.Dd, atom.Dt, atom.Details, atom.Summary:
		text := strings.TrimSpace(w.children(n))
		if text == "" {
			return ""
		}
		return "\n\n" + text + "\n\n"
	case atom.Br:
		return "  \n"
	case atom.Hr:
		return "\n\n---\n\n"
	case atom.Strong, atom.B:
		return emphasize(w.children(n), "**")
	case atom.Em, atom.I, atom.Cite:
		return emphasize(w.children(n), "*")
	case atom.Del, atom.S, atom.Strike:
		return emphasize(w.children(n), "~~")
	case atom.Code, atom.Kbd, atom.Samp:
		text := textContent(n)
		if strings.TrimSpace(text) == "" {
			return text
		}
		fence := "`"
		if strings.Contains(text, "`") {
			fence = "``"
		}
		return fence + text + fence
	case atom.Pre:
		return "\n\n```" + codeLanguage(n) + "\n" + strings.Trim(textContent(n), "\n") + "\n```\n\n"
	case atom.A:
		return w.link(n)
	case atom.Img:
		return imageLink(n)
	case atom.Ul, atom.Ol:
		return w.list(n)
	case atom.Blockquote:
		text := normalizeMarkdown(w.children(n))
		if text == "" {
			return ""
		}
		return "\n\n" + indentLines(text, "> ", false) + "\n\n"
	case atom.Table:
		return w.table(n)
	}
	return w.children(n)
}

func (w *htmlWriter) link(n *html.Node) string {
	text := strings.TrimSpace(w.children(n))
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return text
	}
	if text == "" {
		return ""
	}
	if title := attr(n, "title"); title != "" {
		return "[" + text + "](" + href + " \"" + strings.ReplaceAll(title, `"`, `\"`) + "\")"
	}
	return "[" + text + "](" + href + ")"
}

func imageLink(n *html.Node) string {
	src := strings.TrimSpace(attr(n, "src"))
	alt := strings.TrimSpace(attr(n, "alt"))
	if src == "" {
		return alt
	}
	if strings.HasPrefix(src, "data:") {
		if i := strings.Index(src, ","); i > 0 {
			src = src[:i] + "..."
		}
	}
	return "![" + alt + "](" + src + ")"
}

func (w *htmlWriter) list(n *html.Node) string {
	ordered := n.DataAtom == atom.Ol
	index := 1
	if start, err := strconv.Atoi(attr(n, "start")); ordered && err == nil {
		index = start
	}

	var items []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		marker := "- "
		if ordered {
			marker = strconv.Itoa(index) + ". "
			index++
		}
		body := normalizeMarkdown(w.children(c))
		body = strings.ReplaceAll(body, "\n\n", "\n")
		items = append(items, marker+indentLines(body, strings.Repeat(" ", len(marker)), true))
	}
	if len(items) == 0 {
		return ""
	}
	return "\n\n" + strings.Join(items, "\n") + "\n\n"
}

func (w *htmlWriter) table(n *html.Node) string {
	var rows [][]string
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				collect(c)
			case atom.Tr:
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) {
						text := whitespaceRun.ReplaceAllString(w.children(cell), " ")
						row = append(row, strings.TrimSpace(text))
					}
				}
				rows = append(rows, row)
			}
		}
	}
	collect(n)
	if len(rows) == 0 {
		return ""
	}
	return "\n\n" + renderTable(rows) + "\n\n"
}

func codeLanguage(pre *html.Node) string {
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			for _, class := range strings.Fields(attr(c, "class")) {
				if lang, ok := strings.CutPrefix(class, "language-"); ok {
					return lang
				}
			}
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
