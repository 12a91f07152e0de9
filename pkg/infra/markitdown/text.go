package markitdown

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fastjson"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

type csvConverter struct{}

func NewCSVConverter() DocumentConverter {
	return &csvConverter{}
}

func (c *csvConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".csv") || hasMIMEPrefix(info, "text/csv", "application/csv")
}

func (c *csvConverter) Convert(_ context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	text, err := readText(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, record)
	}
	return &Result{Markdown: renderTable(rows)}, nil
}

// jsonConverter validates with fastjson and emits the document re-indented
// inside a json fence.
type jsonConverter struct {
	parsers fastjson.ParserPool
}

func NewJSONConverter() DocumentConverter {
	return &jsonConverter{}
}

func (c *jsonConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".json") || hasMIMEPrefix(info, "application/json")
}

func (c *jsonConverter) Convert(_ context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	text, err := readText(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	p := c.parsers.Get()
	defer c.parsers.Put(p)

	v, err := p.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, v.MarshalTo(nil), "", "  "); err != nil {
		return nil, fmt.Errorf("indent json: %w", err)
	}
	return &Result{Markdown: "```json\n" + out.String() + "\n```"}, nil
}

var plainTextExtensions = []string{
	".txt", ".text", ".md", ".markdown", ".xml", ".rss", ".atom", ".yaml", ".yml",
	".log", ".ini", ".toml", ".cfg", ".conf", ".rst", ".tsv", ".srt", ".vtt",
}

// plainTextConverter passes text through unchanged. It is registered last and
// picks up any input sniffed as text.
type plainTextConverter struct{}

func NewPlainTextConverter() DocumentConverter {
	return &plainTextConverter{}
}

func (c *plainTextConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, plainTextExtensions...) ||
		hasMIMEPrefix(info, "text/", "application/xml", "application/rss+xml", "application/atom+xml", "application/x-yaml", "application/yaml")
}

func (c *plainTextConverter) Convert(_ context.Context, r io.ReadSeeker, _ StreamInfo, _ Options) (*Result, error) {
	text, err := readText(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return &Result{Markdown: text}, nil
}
