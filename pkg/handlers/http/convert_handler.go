package http

import (
	"errors"

	"github.com/NeuralTrust/docsifer/pkg/app/analytics"
	"github.com/NeuralTrust/docsifer/pkg/app/convert"
	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/handlers/http/request"
	"github.com/NeuralTrust/docsifer/pkg/handlers/http/response"
	"github.com/NeuralTrust/docsifer/pkg/middleware"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type convertHandler struct {
	logger    *logrus.Logger
	converter convert.Converter
	analytics analytics.Aggregator
}

func NewConvertHandler(
	logger *logrus.Logger,
	converter convert.Converter,
	aggregator analytics.Aggregator,
) Handler {
	return &convertHandler{
		logger:    logger,
		converter: converter,
		analytics: aggregator,
	}
}

// Handle @Summary Convert a document to Markdown
// @Description Converts one uploaded file, or a file under the configured local root, to Markdown.
// @Description An OpenAI-compatible API key enables image descriptions and audio transcripts.
// @Tags v1
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "File to convert"
// @Param file_path formData string false "Server-local path, relative to the configured root"
// @Param openai formData string false "JSON object with api_key, base_url and model" default({})
// @Param settings formData string false "JSON object with cleanup" default({})
// @Success 200 {object} conversion.Result "Converted document"
// @Failure 400 {object} response.ErrorResponse "Invalid form data"
// @Failure 403 {object} response.ErrorResponse "Path outside the local root"
// @Failure 404 {object} response.ErrorResponse "File not found"
// @Failure 415 {object} response.ErrorResponse "Unsupported format"
// @Failure 502 {object} response.ErrorResponse "LLM request failed"
// @Failure 500 {object} response.ErrorResponse "Conversion failed"
// @Router /v1/convert [post]
func (h *convertHandler) Handle(c *fiber.Ctx) error {
	req, err := request.NewConvertRequest(c.FormValue("openai"), c.FormValue("settings"), c.FormValue("file_path"))
	if err != nil {
		return h.fail(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader = nil
	}
	if fileHeader == nil && req.FilePath == "" {
		return h.fail(c, request.ErrMissingFile)
	}

	var (
		res    *conversion.Result
		tokens int
	)
	if fileHeader != nil {
		h.logger.WithFields(logrus.Fields{
			"filename":   fileHeader.Filename,
			"size":       humanize.Bytes(uint64(fileHeader.Size)),
			"llm":        req.OpenAI.Enabled(),
			"request_id": middleware.RequestID(c),
		}).Debug("converting upload")

		f, openErr := fileHeader.Open()
		if openErr != nil {
			return h.fail(c, openErr)
		}
		defer f.Close()
		res, tokens, err = h.converter.ConvertUpload(c.UserContext(), fileHeader.Filename, f, req.OpenAI, req.Settings)
	} else {
		res, tokens, err = h.converter.ConvertLocal(c.UserContext(), req.FilePath, req.OpenAI, req.Settings)
	}
	if err != nil {
		return h.fail(c, err)
	}

	h.analytics.Record(tokens)
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *convertHandler) fail(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"status":     status,
		"request_id": middleware.RequestID(c),
	})
	if status >= fiber.StatusInternalServerError {
		entry.Error("failed to convert document")
	} else {
		entry.Warn("failed to convert document")
	}
	return c.Status(status).JSON(response.ErrorResponse{Error: response.ConvertErrorPrefix + err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, conversion.ErrInvalidJSON), errors.Is(err, request.ErrMissingFile):
		return fiber.StatusBadRequest
	case errors.Is(err, conversion.ErrPathNotAllowed):
		return fiber.StatusForbidden
	case errors.Is(err, conversion.ErrFileNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, conversion.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, conversion.ErrLLMRequest):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
