package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/infra/llm"
	"github.com/NeuralTrust/docsifer/pkg/infra/markitdown"
	"github.com/NeuralTrust/docsifer/pkg/infra/prometheus"
	"github.com/NeuralTrust/docsifer/pkg/infra/tokenizer"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// LocalRoot is the only directory ConvertLocal may read from. Empty
	// disables local conversion.
	LocalRoot string
	Timeout   time.Duration
	// TempDir defaults to os.TempDir().
	TempDir string
}

//go:generate mockery --name=Converter --dir=. --output=./mocks --filename=converter_mock.go --case=underscore
type Converter interface {
	ConvertFile(ctx context.Context, path string, llmConfig *conversion.LLMConfig, settings conversion.Settings) (*conversion.Result, int, error)
	ConvertUpload(ctx context.Context, filename string, r io.Reader, llmConfig *conversion.LLMConfig, settings conversion.Settings) (*conversion.Result, int, error)
	ConvertLocal(ctx context.Context, path string, llmConfig *conversion.LLMConfig, settings conversion.Settings) (*conversion.Result, int, error)
}

type converter struct {
	logger  *logrus.Logger
	engine  markitdown.FileConverter
	llm     llm.Provider
	counter tokenizer.Counter
	config  Config
}

func NewConverter(
	logger *logrus.Logger,
	engine markitdown.FileConverter,
	llmProvider llm.Provider,
	counter tokenizer.Counter,
	config Config,
) Converter {
	return &converter{
		logger:  logger,
		engine:  engine,
		llm:     llmProvider,
		counter: counter,
		config:  config,
	}
}

// ConvertFile converts a private copy of path, so the HTML cleanup and the
// rename to the sniffed extension never touch the caller's file. The returned
// int is the token count of the Markdown.
func (c *converter) ConvertFile(
	ctx context.Context,
	path string,
	llmConfig *conversion.LLMConfig,
	settings conversion.Settings,
) (*conversion.Result, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", conversion.ErrFileNotFound, filepath.Base(path))
		}
		return nil, 0, fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: %s is a directory", conversion.ErrFileNotFound, filepath.Base(path))
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	workDir, err := os.MkdirTemp(c.config.TempDir, "docsifer-")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	name := filepath.Base(path)
	staged, err := stage(path, workDir)
	if err != nil {
		return nil, 0, err
	}

	if settings.Cleanup && isHTML(staged) {
		if err := cleanupHTMLFile(staged); err != nil {
			c.logger.WithError(err).WithField("filename", name).Warn("html cleanup failed, converting as is")
		}
	}

	opts := markitdown.Options{}
	withLLM := llmConfig.Enabled() && c.llm != nil
	if withLLM {
		opts.LLM = c.llm.ClientFor(*llmConfig)
	}

	ext := metricExtension(staged)
	start := time.Now()
	res, err := c.engine.ConvertFile(ctx, staged, opts)
	elapsed := time.Since(start)
	if prometheus.Config.EnableLatency {
		prometheus.ConversionLatency.WithLabelValues(ext, strconv.FormatBool(withLLM)).Observe(float64(elapsed.Milliseconds()))
	}
	if err != nil {
		prometheus.ConversionsTotal.WithLabelValues(ext, "error").Inc()
		c.logger.WithFields(logrus.Fields{
			"filename": name,
			"size":     humanize.Bytes(uint64(info.Size())),
			"llm":      withLLM,
			"error":    err.Error(),
		}).Error("conversion failed")
		return nil, 0, fmt.Errorf("%w: %s: %w", conversion.ErrConversionFailed, name, err)
	}
	prometheus.ConversionsTotal.WithLabelValues(ext, "ok").Inc()

	tokens := c.counter.Count(res.Markdown)
	prometheus.TokensTotal.Add(float64(tokens))

	c.logger.WithFields(logrus.Fields{
		"filename": name,
		"size":     humanize.Bytes(uint64(info.Size())),
		"llm":      withLLM,
		"tokens":   tokens,
		"duration": elapsed.String(),
	}).Debug("document converted")

	return &conversion.Result{Filename: name, Markdown: res.Markdown}, tokens, nil
}

// ConvertUpload spools r to a temp file named after filename and converts it.
func (c *converter) ConvertUpload(
	ctx context.Context,
	filename string,
	r io.Reader,
	llmConfig *conversion.LLMConfig,
	settings conversion.Settings,
) (*conversion.Result, int, error) {
	dir, err := os.MkdirTemp(c.config.TempDir, "docsifer-upload-")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create upload dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := SanitizeFilename(filename)
	if name == "" {
		name = uuid.NewString() + ".tmp"
	}
	target := filepath.Join(dir, name)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, 0, fmt.Errorf("failed to write upload: %w", err)
	}
	return c.ConvertFile(ctx, target, llmConfig, settings)
}

// ConvertLocal converts a file under Config.LocalRoot. Relative paths are
// resolved against the root.
func (c *converter) ConvertLocal(
	ctx context.Context,
	path string,
	llmConfig *conversion.LLMConfig,
	settings conversion.Settings,
) (*conversion.Result, int, error) {
	resolved, err := c.resolveLocal(path)
	if err != nil {
		return nil, 0, err
	}
	return c.ConvertFile(ctx, resolved, llmConfig, settings)
}

func (c *converter) resolveLocal(p string) (string, error) {
	if strings.TrimSpace(c.config.LocalRoot) == "" {
		return "", fmt.Errorf("%w: local conversion is disabled", conversion.ErrPathNotAllowed)
	}
	root, err := filepath.Abs(c.config.LocalRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve local root: %w", err)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(root, p) {
		return "", fmt.Errorf("%w: %s", conversion.ErrPathNotAllowed, p)
	}

	// Symlinks must not lead out of the root either.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve local root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", conversion.ErrFileNotFound, filepath.Base(p))
		}
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	if !within(realRoot, resolved) {
		return "", fmt.Errorf("%w: %s", conversion.ErrPathNotAllowed, p)
	}
	return resolved, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SanitizeFilename keeps the base name of an uploaded filename, with either
// separator, and drops control characters. It returns "" when nothing usable
// remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}

// stage copies src into dir. When the content is recognized by its magic
// bytes the copy gets the detected extension.
func stage(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	name := filepath.Base(src)
	head := make([]byte, 8192)
	n, _ := io.ReadFull(in, head)
	if kind, err := filetype.Match(head[:n]); err == nil && kind != filetype.Unknown {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + kind.Extension
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", filepath.Base(src), err)
	}

	dst := filepath.Join(dir, name)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create work copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	return dst, nil
}

func isHTML(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".html", ".htm":
		return true
	}
	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return strings.HasPrefix(http.DetectContentType(head[:n]), "text/html")
}

// metricExtension keeps the extension label to the set the converters know.
func metricExtension(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	switch {
	case ext == "":
		return "none"
	case !markitdown.KnownExtension(ext):
		return "other"
	}
	return strings.TrimPrefix(ext, ".")
}
