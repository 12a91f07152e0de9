package markitdown

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfConverter extracts the embedded text layer. Scanned, image-only PDFs
// produce empty Markdown.
type pdfConverter struct{}

func NewPDFConverter() DocumentConverter {
	return &pdfConverter{}
}

func (c *pdfConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".pdf") || hasMIMEPrefix(info, "application/pdf", "application/x-pdf")
}

func (c *pdfConverter) Convert(_ context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (res *Result, err error) {
	br, err := readAllSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	reader, err := pdf.NewReader(br, br.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	fonts := make(map[string]*pdf.Font)
	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, pageErr := p.GetPlainText(fonts)
		if pageErr != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, pageErr)
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	return &Result{Markdown: strings.Join(parts, "\n\n")}, nil
}
