package convert

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var displayNone = regexp.MustCompile(`(?i)display\s*:\s*none`)

// CleanHTML drops <style> elements, hidden inputs, elements carrying the
// hidden attribute and elements whose inline style is display:none.
func CleanHTML(r io.Reader, w io.Writer) error {
	doc, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}
	stripHidden(doc)
	return html.Render(w, doc)
}

func cleanupHTMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := CleanHTML(bytes.NewReader(data), &out); err != nil {
		return err
	}
	return os.WriteFile(path, out.Bytes(), 0o600)
}

func stripHidden(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && isHidden(c) {
			n.RemoveChild(c)
		} else {
			stripHidden(c)
		}
		c = next
	}
}

func isHidden(n *html.Node) bool {
	if n.DataAtom == atom.Style {
		return true
	}
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "hidden":
			return true
		case "style":
			if displayNone.MatchString(a.Val) {
				return true
			}
		case "type":
			if n.DataAtom == atom.Input && strings.EqualFold(strings.TrimSpace(a.Val), "hidden") {
				return true
			}
		}
	}
	return false
}
