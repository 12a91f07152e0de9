package httpx

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encodings understood by NewDecoder.
const (
	EncodingGzip    = "gzip"
	EncodingBrotli  = "br"
	EncodingZstd    = "zstd"
	EncodingDeflate = "deflate"
)

// NewDecoder wraps r with a decompressor for encoding. For deflate, zlib
// framing is tried before raw DEFLATE, which needs the whole input in memory.
func NewDecoder(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch strings.TrimSpace(strings.ToLower(encoding)) {
	case EncodingGzip, "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case EncodingZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case EncodingDeflate:
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			return zr, nil
		}
		return flate.NewReader(bytes.NewReader(raw)), nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding: %q", encoding)
	}
}

// DecodeChain decodes body according to a Content-Encoding value, applying
// chained encodings (e.g. "gzip, br") in reverse order. It reports whether
// the body changed.
func DecodeChain(contentEncoding string, body []byte) ([]byte, bool, error) {
	if contentEncoding == "" {
		return body, false, nil
	}
	encodings := strings.Split(contentEncoding, ",")
	changed := false
	for i := len(encodings) - 1; i >= 0; i-- {
		enc := strings.TrimSpace(strings.ToLower(encodings[i]))
		switch enc {
		case "", "identity", "compress":
			continue
		}
		dec, err := NewDecoder(enc, bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		out, err := io.ReadAll(dec)
		cerr := dec.Close()
		if err != nil {
			return nil, false, err
		}
		if cerr != nil {
			return nil, false, cerr
		}
		body = out
		changed = true
	}
	return body, changed, nil
}
