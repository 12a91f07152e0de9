package markitdown

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxPartSize caps a single decompressed OOXML part.
const maxPartSize = 64 << 20

// xmlNode is a namespace-agnostic element tree; lookups match local names so
// "w:p" and "a:p" are both addressed as "p" under their parent.
type xmlNode struct {
	Name     string
	Attr     map[string]string
	Children []*xmlNode
	Text     string
}

func parseXML(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	root := &xmlNode{Name: "#document"}
	stack := []*xmlNode{root}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{Name: t.Name.Local, Attr: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.Attr[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].Text += string(t)
		}
	}
	return root, nil
}

func (n *xmlNode) child(name string) *xmlNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *xmlNode) children(name string) []*xmlNode {
	if n == nil {
		return nil
	}
	var out []*xmlNode
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// find returns the first descendant named name, depth first.
func (n *xmlNode) find(name string) *xmlNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// path follows a chain of direct children.
func (n *xmlNode) path(names ...string) *xmlNode {
	cur := n
	for _, name := range names {
		cur = cur.child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (n *xmlNode) attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attr[name]
}

// on reports whether a toggle property like <w:b/> or <w:b w:val="true"/> is set.
func (n *xmlNode) on() bool {
	if n == nil {
		return false
	}
	switch strings.ToLower(n.attr("val")) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

func zipFiles(zr *zip.Reader) map[string]*zip.File {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	return files
}

func readZipXML(files map[string]*zip.File, name string) (*xmlNode, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("missing part %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	defer rc.Close()
	node, err := parseXML(io.LimitReader(rc, maxPartSize))
	if err != nil {
		return nil, fmt.Errorf("parse part %s: %w", name, err)
	}
	return node, nil
}

// readRelationships maps relationship ids to targets for an OOXML .rels part.
// Internal targets are resolved against the part's directory.
func readRelationships(files map[string]*zip.File, relsName, baseDir string) map[string]relationship {
	rels := make(map[string]relationship)
	root, err := readZipXML(files, relsName)
	if err != nil {
		return rels
	}
	for _, rel := range root.path("Relationships").children("Relationship") {
		target := rel.attr("Target")
		external := strings.EqualFold(rel.attr("TargetMode"), "External")
		switch {
		case external:
		case strings.HasPrefix(target, "/"):
			target = strings.TrimPrefix(target, "/")
		default:
			target = path.Clean(path.Join(baseDir, target))
		}
		rels[rel.attr("Id")] = relationship{
			Type:     rel.attr("Type"),
			Target:   target,
			External: external,
		}
	}
	return rels
}

type relationship struct {
	Type     string
	Target   string
	External bool
}
