package markitdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/infra/llm"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
)

const (
	sniffLen = 8192
	// maxDepth bounds recursion through archives.
	maxDepth = 4
)

// StreamInfo describes the input being converted. Converters decide on
// Accepts from these fields alone and must not read the stream there.
type StreamInfo struct {
	MIMEType  string
	Extension string
	Charset   string
	Filename  string
	LocalPath string
}

type Result struct {
	Markdown string
	Title    string
}

// Options are per-conversion. LLM is nil when no API key was supplied.
type Options struct {
	LLM llm.Client

	engine *MarkItDown
	depth  int
}

type DocumentConverter interface {
	Accepts(info StreamInfo) bool
	Convert(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts Options) (*Result, error)
}

// FileConverter converts a file on disk. MarkItDown and ExternalConverter
// implement it.
//
//go:generate mockery --name=FileConverter --dir=. --output=./mocks --filename=file_converter_mock.go --case=underscore
type FileConverter interface {
	ConvertFile(ctx context.Context, path string, opts Options) (*Result, error)
}

type MarkItDown struct {
	converters []DocumentConverter
	logger     *logrus.Logger
}

// New returns an engine with the given converters, or the built-in set when
// none are given.
func New(logger *logrus.Logger, converters ...DocumentConverter) *MarkItDown {
	if len(converters) == 0 {
		converters = DefaultConverters()
	}
	return &MarkItDown{
		converters: converters,
		logger:     logger,
	}
}

// DefaultConverters is the built-in set in the order they are tried.
func DefaultConverters() []DocumentConverter {
	return []DocumentConverter{
		NewPDFConverter(),
		NewDocxConverter(),
		NewPptxConverter(),
		NewXlsxConverter(),
		NewHTMLConverter(),
		NewCSVConverter(),
		NewJSONConverter(),
		NewImageConverter(),
		NewAudioConverter(),
		NewZipConverter(),
		NewCompressedConverter(),
		NewPlainTextConverter(),
	}
}

func (m *MarkItDown) ConvertFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", conversion.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := DetectStreamInfo(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	info.LocalPath = path
	return m.ConvertStream(ctx, f, info, opts)
}

// ConvertStream tries every converter that accepts info, in order, rewinding
// r between attempts. The first success wins.
func (m *MarkItDown) ConvertStream(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts Options) (*Result, error) {
	if opts.depth > maxDepth {
		return nil, fmt.Errorf("%w: archive nesting deeper than %d", conversion.ErrUnsupportedFormat, maxDepth)
	}
	opts.engine = m

	var failures []error
	for _, c := range m.converters {
		if !c.Accepts(info) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind input: %w", err)
		}
		res, err := c.Convert(ctx, r, info, opts)
		if err == nil {
			res.Markdown = normalizeMarkdown(res.Markdown)
			return res, nil
		}
		m.logger.WithFields(logrus.Fields{
			"converter": fmt.Sprintf("%T", c),
			"filename":  info.Filename,
			"error":     err.Error(),
		}).Debug("converter failed, trying next")
		failures = append(failures, fmt.Errorf("%T: %w", c, err))
	}

	if len(failures) == 0 {
		return nil, fmt.Errorf("%w: %s", conversion.ErrUnsupportedFormat, describe(info))
	}
	return nil, errors.Join(failures...)
}

// DetectStreamInfo fills extension and MIME type from the name and the first
// bytes of r, then rewinds r.
func DetectStreamInfo(r io.ReadSeeker, filename string) (StreamInfo, error) {
	info := StreamInfo{
		Filename:  filename,
		Extension: strings.ToLower(filepath.Ext(filename)),
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return info, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	head = head[:n]
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("failed to rewind %s: %w", filename, err)
	}

	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		info.MIMEType = kind.MIME.Value
		if info.Extension == "" {
			info.Extension = "." + kind.Extension
		}
		return info, nil
	}

	if n > 0 {
		mediaType, params, err := mime.ParseMediaType(http.DetectContentType(head))
		if err == nil && mediaType != "application/octet-stream" {
			info.MIMEType = mediaType
			info.Charset = params["charset"]
		}
	}
	if info.MIMEType == "" && info.Extension != "" {
		if byExt := mime.TypeByExtension(info.Extension); byExt != "" {
			info.MIMEType, _, _ = mime.ParseMediaType(byExt)
		}
	}
	return info, nil
}

func describe(info StreamInfo) string {
	parts := make([]string, 0, 3)
	if info.Filename != "" {
		parts = append(parts, info.Filename)
	}
	if info.Extension != "" {
		parts = append(parts, "extension "+info.Extension)
	}
	if info.MIMEType != "" {
		parts = append(parts, "type "+info.MIMEType)
	}
	if len(parts) == 0 {
		return "unknown input"
	}
	return strings.Join(parts, ", ")
}

var knownExtensions = buildKnownExtensions()

func buildKnownExtensions() map[string]struct{} {
	exts := []string{
		".pdf", ".docx", ".pptx", ".xlsx", ".xlsm",
		".html", ".htm", ".xhtml", ".csv", ".json", ".zip",
	}
	exts = append(exts, imageExtensions...)
	exts = append(exts, audioExtensions...)
	exts = append(exts, ".mp4", ".webm")
	exts = append(exts, plainTextExtensions...)
	for ext := range compressedExtensions {
		exts = append(exts, ext)
	}

	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		out[ext] = struct{}{}
	}
	return out
}

// KnownExtension reports whether a built-in converter accepts files by this
// extension. ext is lower case with its leading dot.
func KnownExtension(ext string) bool {
	_, ok := knownExtensions[ext]
	return ok
}

func hasExtension(info StreamInfo, exts ...string) bool {
	for _, ext := range exts {
		if info.Extension == ext {
			return true
		}
	}
	return false
}

func hasMIMEPrefix(info StreamInfo, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(info.MIMEType, p) {
			return true
		}
	}
	return false
}

// readAllSeeker returns the whole input and an io.ReaderAt over it.
func readAllSeeker(r io.ReadSeeker) (*bytes.Reader, error) {
	if br, ok := r.(*bytes.Reader); ok {
		return br, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
