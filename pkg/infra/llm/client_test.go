package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/infra/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatCompletionResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "A cat sitting on a desk."}}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 6, "total_tokens": 16}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider := NewProvider(Config{
		DefaultBaseURL:     server.URL + "/v1",
		MaxRetries:         0,
		BreakerMaxFailures: 2,
	}, nil, logger.NewNopLogger())
	return provider, server
}

func TestDescribeImage(t *testing.T) {
	provider, server := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		raw, _ := json.Marshal(body["messages"])
		assert.Contains(t, string(raw), DefaultImagePrompt)
		assert.Contains(t, string(raw), "data:image/png;base64,")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionResponse))
	})

	cli := provider.ClientFor(conversion.LLMConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	assert.Equal(t, conversion.DefaultLLMModel, cli.Model())

	description, err := cli.DescribeImage(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "A cat sitting on a desk.", description)
}

func TestDescribeImage_ErrorIsLLMRequest(t *testing.T) {
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	})

	cli := provider.ClientFor(conversion.LLMConfig{APIKey: "sk-bad"})
	_, err := cli.DescribeImage(context.Background(), []byte("img"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, conversion.ErrLLMRequest))
}

func TestTranscribe(t *testing.T) {
	provider, server := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, DefaultTranscriptionModel, r.FormValue("model"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "meeting.mp3", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "ID3audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "hello from the meeting"}`))
	})

	cli := provider.ClientFor(conversion.LLMConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	text, err := cli.Transcribe(context.Background(), "meeting.mp3", strings.NewReader("ID3audio"))
	require.NoError(t, err)
	assert.Equal(t, "hello from the meeting", text)
}

func TestBreakerOpensPerBaseURL(t *testing.T) {
	var calls atomic.Int32
	provider, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	})

	cli := provider.ClientFor(conversion.LLMConfig{APIKey: "sk-test"})
	for i := 0; i < 4; i++ {
		_, err := cli.DescribeImage(context.Background(), []byte("img"), "image/png")
		assert.ErrorIs(t, err, conversion.ErrLLMRequest)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFor_ReusesSDKClient(t *testing.T) {
	p := NewProvider(Config{}, nil, logger.NewNopLogger()).(*pool)

	a := p.ClientFor(conversion.LLMConfig{APIKey: "sk-a"}).(*client)
	b := p.ClientFor(conversion.LLMConfig{APIKey: "sk-a", Model: "gpt-4o"}).(*client)
	c := p.ClientFor(conversion.LLMConfig{APIKey: "sk-b"}).(*client)

	assert.Same(t, a.sdk, b.sdk)
	assert.NotSame(t, a.sdk, c.sdk)
	assert.Equal(t, "gpt-4o", b.Model())
	assert.Equal(t, conversion.DefaultLLMBaseURL, a.baseURL)
}

func TestClientFor_IdleClientsAreEvicted(t *testing.T) {
	p := NewProvider(Config{ClientTTL: 20 * time.Millisecond}, nil, logger.NewNopLogger()).(*pool)

	for _, key := range []string{"sk-1", "sk-2", "sk-3"} {
		p.ClientFor(conversion.LLMConfig{APIKey: key})
	}
	assert.Equal(t, 3, p.clients.Len())

	time.Sleep(40 * time.Millisecond)
	p.clients.Sweep()
	assert.Equal(t, 0, p.clients.Len())

	fresh := p.ClientFor(conversion.LLMConfig{APIKey: "sk-1"}).(*client)
	assert.NotNil(t, fresh.sdk)
	assert.Equal(t, 1, p.clients.Len())
}

func TestNewHTTPClient_UserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "Docsifer/"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := NewHTTPClient(Config{Timeout: 5 * time.Second}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
