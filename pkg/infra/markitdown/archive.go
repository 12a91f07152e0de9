package markitdown

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/infra/httpx"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// maxEntrySize caps one decompressed archive member.
const maxEntrySize = 256 << 20

var errEntryTooLarge = errors.New("archive entry exceeds size limit")

type zipConverter struct{}

func NewZipConverter() DocumentConverter {
	return &zipConverter{}
}

func (c *zipConverter) Accepts(info StreamInfo) bool {
	return hasExtension(info, ".zip") || hasMIMEPrefix(info, "application/zip", "application/x-zip")
}

// Convert converts every member through the engine. Unsupported or failing
// members are skipped.
func (c *zipConverter) Convert(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts Options) (*Result, error) {
	br, err := readAllSeeker(r)
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}
	zr, err := zip.NewReader(br, br.Size())
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	name := info.Filename
	if name == "" && info.LocalPath != "" {
		name = filepath.Base(info.LocalPath)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Content from the zip file `%s`:\n\n", name)

	nested := opts
	nested.depth++
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if !safeEntryName(f.Name) {
			opts.logger().WithField("entry", f.Name).Warn("skipping zip entry with unsafe path")
			continue
		}

		res, err := c.convertEntry(ctx, f, nested)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			opts.logger().WithFields(logrus.Fields{
				"entry": f.Name,
				"error": err.Error(),
			}).Debug("skipping zip entry")
			continue
		}
		fmt.Fprintf(&sb, "## File: %s\n\n%s\n\n", f.Name, res.Markdown)
	}
	return &Result{Markdown: sb.String()}, nil
}

func (c *zipConverter) convertEntry(ctx context.Context, f *zip.File, opts Options) (*Result, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := readLimited(rc, maxEntrySize)
	if err != nil {
		return nil, err
	}
	return opts.engine.convertBytes(ctx, data, path.Base(f.Name), opts)
}

// safeEntryName rejects absolute names and any that escape the archive root.
func safeEntryName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) || filepath.VolumeName(name) != "" {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}

var compressedExtensions = map[string]string{
	".gz":   httpx.EncodingGzip,
	".gzip": httpx.EncodingGzip,
	".zst":  httpx.EncodingZstd,
	".br":   httpx.EncodingBrotli,
}

// compressedConverter unwraps a single compressed stream (gzip, zstd or
// brotli) and converts what is inside.
type compressedConverter struct{}

func NewCompressedConverter() DocumentConverter {
	return &compressedConverter{}
}

func (c *compressedConverter) Accepts(info StreamInfo) bool {
	if _, ok := compressedExtensions[info.Extension]; ok {
		return true
	}
	return hasMIMEPrefix(info, "application/gzip", "application/x-gzip", "application/zstd")
}

func (c *compressedConverter) Convert(ctx context.Context, r io.ReadSeeker, info StreamInfo, opts Options) (*Result, error) {
	encoding, ok := compressedExtensions[info.Extension]
	if !ok {
		encoding = httpx.EncodingGzip
		if strings.Contains(info.MIMEType, "zstd") {
			encoding = httpx.EncodingZstd
		}
	}

	dec, err := httpx.NewDecoder(encoding, r)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", encoding, err)
	}
	defer dec.Close()

	inner := strings.TrimSuffix(info.Filename, filepath.Ext(info.Filename))
	if gz, ok := dec.(*gzip.Reader); ok && gz.Name != "" {
		inner = path.Base(gz.Name)
	}

	data, err := readLimited(dec, maxEntrySize)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", encoding, err)
	}

	opts.depth++
	return opts.engine.convertBytes(ctx, data, inner, opts)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errEntryTooLarge
	}
	return data, nil
}

func (m *MarkItDown) convertBytes(ctx context.Context, data []byte, name string, opts Options) (*Result, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nested input %s", conversion.ErrUnsupportedFormat, name)
	}
	rs := bytes.NewReader(data)
	info, err := DetectStreamInfo(rs, name)
	if err != nil {
		return nil, err
	}
	return m.ConvertStream(ctx, rs, info, opts)
}

func (o Options) logger() *logrus.Logger {
	if o.engine != nil && o.engine.logger != nil {
		return o.engine.logger
	}
	return logrus.StandardLogger()
}
