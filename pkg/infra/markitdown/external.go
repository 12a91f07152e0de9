package markitdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/sirupsen/logrus"
)

const DefaultMarkitdownBin = "markitdown"

// ExternalConverter pipes a file through the markitdown command line tool and
// reads Markdown from its stdout.
type ExternalConverter struct {
	bin     string
	timeout time.Duration
	logger  *logrus.Logger
}

func NewExternalConverter(bin string, timeout time.Duration, logger *logrus.Logger) *ExternalConverter {
	if bin == "" {
		bin = DefaultMarkitdownBin
	}
	return &ExternalConverter{bin: bin, timeout: timeout, logger: logger}
}

// Available reports whether the binary can be found.
func (e *ExternalConverter) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

func (e *ExternalConverter) ConvertFile(ctx context.Context, path string, _ Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", conversion.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var args []string
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext != "" {
		args = append(args, "-x", ext)
	}

	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = f
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("markitdown timed out: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "UnsupportedFormatException") {
			return nil, fmt.Errorf("%w: %s", conversion.ErrUnsupportedFormat, filepath.Base(path))
		}
		return nil, fmt.Errorf("markitdown failed: %w: %s", err, lastLine(msg))
	}

	e.logger.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"duration": time.Since(start).String(),
	}).Debug("markitdown conversion finished")

	return &Result{Markdown: normalizeMarkdown(stdout.String())}, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

type fallbackConverter struct {
	primary  FileConverter
	fallback FileConverter
	logger   *logrus.Logger
}

// WithFallback tries primary first and, on any error other than a missing
// file or a canceled context, retries with fallback.
func WithFallback(primary, fallback FileConverter, logger *logrus.Logger) FileConverter {
	return &fallbackConverter{primary: primary, fallback: fallback, logger: logger}
}

func (c *fallbackConverter) ConvertFile(ctx context.Context, path string, opts Options) (*Result, error) {
	res, err := c.primary.ConvertFile(ctx, path, opts)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, conversion.ErrFileNotFound) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	c.logger.WithError(err).Warn("primary converter failed, using fallback")
	return c.fallback.ConvertFile(ctx, path, opts)
}

type llmRouter struct {
	primary FileConverter
	withLLM FileConverter
}

// WithLLMRoute sends conversions that carry an LLM client to withLLM, so
// images get descriptions and audio gets transcripts. The rest go to primary.
func WithLLMRoute(primary, withLLM FileConverter) FileConverter {
	return &llmRouter{primary: primary, withLLM: withLLM}
}

func (r *llmRouter) ConvertFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.LLM != nil {
		return r.withLLM.ConvertFile(ctx, path, opts)
	}
	return r.primary.ConvertFile(ctx, path, opts)
}
