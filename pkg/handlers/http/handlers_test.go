package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NeuralTrust/docsifer/pkg/app/analytics"
	analyticsMocks "github.com/NeuralTrust/docsifer/pkg/app/analytics/mocks"
	convertMocks "github.com/NeuralTrust/docsifer/pkg/app/convert/mocks"
	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	"github.com/NeuralTrust/docsifer/pkg/infra/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type formFile struct {
	name    string
	content string
}

func multipartRequest(t *testing.T, file *formFile, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if file != nil {
		part, err := w.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/convert", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newConvertApp(converter *convertMocks.Converter, aggregator *analyticsMocks.Aggregator) *fiber.App {
	app := fiber.New()
	h := NewConvertHandler(logger.NewNopLogger(), converter, aggregator)
	app.Post("/v1/convert", h.Handle)
	return app
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestConvertHandler_Upload(t *testing.T) {
	converter := new(convertMocks.Converter)
	aggregator := new(analyticsMocks.Aggregator)

	converter.On("ConvertUpload",
		mock.Anything,
		"report.txt",
		mock.Anything,
		mock.MatchedBy(func(cfg *conversion.LLMConfig) bool { return cfg.APIKey == "sk-test" && cfg.Model == "gpt-4o" }),
		conversion.Settings{Cleanup: false},
	).Return(&conversion.Result{Filename: "report.txt", Markdown: "# Report"}, 42, nil).Once()
	aggregator.On("Record", 42).Once()

	app := newConvertApp(converter, aggregator)
	req := multipartRequest(t, &formFile{name: "report.txt", content: "# Report"}, map[string]string{
		"openai":   `{"api_key":"sk-test","model":"gpt-4o"}`,
		"settings": `{"cleanup": false}`,
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"filename":"report.txt","markdown":"# Report"}`, string(body))
	converter.AssertExpectations(t)
	aggregator.AssertExpectations(t)
}

func TestConvertHandler_LocalPath(t *testing.T) {
	converter := new(convertMocks.Converter)
	aggregator := new(analyticsMocks.Aggregator)

	converter.On("ConvertLocal", mock.Anything, "docs/a.pdf", mock.Anything, conversion.DefaultSettings()).
		Return(&conversion.Result{Filename: "a.pdf", Markdown: "text"}, 1, nil).Once()
	aggregator.On("Record", 1).Once()

	app := newConvertApp(converter, aggregator)
	resp, err := app.Test(multipartRequest(t, nil, map[string]string{"file_path": "docs/a.pdf"}))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	converter.AssertExpectations(t)
}

func TestConvertHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		file    *formFile
		fields  map[string]string
		message string
	}{
		{
			name:    "invalid openai json",
			file:    &formFile{name: "a.txt", content: "x"},
			fields:  map[string]string{"openai": "{oops"},
			message: "Failed to convert document. Error: invalid JSON in 'openai' parameter",
		},
		{
			name:    "invalid settings json",
			file:    &formFile{name: "a.txt", content: "x"},
			fields:  map[string]string{"settings": "nope"},
			message: "Failed to convert document. Error: invalid JSON in 'settings' parameter",
		},
		{
			name:    "no file",
			fields:  map[string]string{},
			message: "Failed to convert document. Error: " + "no file provided: send 'file' or 'file_path'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			converter := new(convertMocks.Converter)
			aggregator := new(analyticsMocks.Aggregator)
			app := newConvertApp(converter, aggregator)

			resp, err := app.Test(multipartRequest(t, tt.file, tt.fields))
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.message, decodeError(t, resp))
			converter.AssertNotCalled(t, "ConvertUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			aggregator.AssertNotCalled(t, "Record", mock.Anything)
		})
	}
}

func TestConvertHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: /etc/passwd", conversion.ErrPathNotAllowed), http.StatusForbidden},
		{fmt.Errorf("%w: a.pdf", conversion.ErrFileNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: a.bin: %w: type application/octet-stream", conversion.ErrConversionFailed, conversion.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{fmt.Errorf("%w: a.png: %w: image description", conversion.ErrConversionFailed, conversion.ErrLLMRequest), http.StatusBadGateway},
		{fmt.Errorf("%w: a.pdf: malformed xref", conversion.ErrConversionFailed), http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			converter := new(convertMocks.Converter)
			aggregator := new(analyticsMocks.Aggregator)
			converter.On("ConvertUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, 0, tt.err).Once()

			app := newConvertApp(converter, aggregator)
			resp, err := app.Test(multipartRequest(t, &formFile{name: "a.bin", content: "x"}, nil))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "Failed to convert document. Error: "+tt.err.Error(), decodeError(t, resp))
			aggregator.AssertNotCalled(t, "Record", mock.Anything)
		})
	}
}

func TestGetStatsHandler(t *testing.T) {
	aggregator := new(analyticsMocks.Aggregator)
	snapshot := stats.Snapshot{
		Access: stats.Counters{"total": {"docsifer": 3}, "2025-01-14": {"docsifer": 3}},
		Tokens: stats.Counters{"total": {"docsifer": 120}},
	}
	aggregator.On("Stats").Return(snapshot).Once()

	app := fiber.New()
	app.Get("/v1/stats", NewGetStatsHandler(logger.NewNopLogger(), aggregator).Handle)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{
		"access": {"total": {"docsifer": 3}, "2025-01-14": {"docsifer": 3}},
		"tokens": {"total": {"docsifer": 120}}
	}`, string(body))
}

func TestGetStatsHandler_Empty(t *testing.T) {
	aggregator := new(analyticsMocks.Aggregator)
	aggregator.On("Stats").Return(stats.Snapshot{}).Once()

	app := fiber.New()
	app.Get("/v1/stats", NewGetStatsHandler(logger.NewNopLogger(), aggregator).Handle)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"access": {}, "tokens": {}}`, string(body))
}

func TestGetStatsSummaryHandler(t *testing.T) {
	aggregator := new(analyticsMocks.Aggregator)
	aggregator.On("Summary").Return(analytics.Report{
		Access: []stats.Summary{{Label: "docsifer", Total: 3, Daily: 1, Weekly: 2, Monthly: 3, Yearly: 3}},
	}).Once()

	app := fiber.New()
	app.Get("/v1/stats/summary", NewGetStatsSummaryHandler(logger.NewNopLogger(), aggregator).Handle)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/stats/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{
		"access": [{"label": "docsifer", "total": 3, "daily": 1, "weekly": 2, "monthly": 3, "yearly": 3}],
		"tokens": []
	}`, string(body))
}

func TestGetVersionHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/version", NewGetVersionHandler().Handle)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/version", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var info map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "Docsifer", info["app_name"])
	assert.NotEmpty(t, info["go_version"])
}

func TestPlaygroundHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewPlaygroundHandler().Handle)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "/v1/convert")
	assert.Contains(t, string(body), "/v1/stats/summary")
}
