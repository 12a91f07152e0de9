package httpx

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/infra/httpx/mocks"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_Execute(t *testing.T) {
	breaker := NewCircuitBreaker("llm:https://api.openai.com/v1", 30*time.Second, 3)

	assert.NoError(t, breaker.Execute(func() error { return nil }))

	err := breaker.Execute(func() error { return errors.New("original error") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker (llm:https://api.openai.com/v1)")
	assert.Contains(t, err.Error(), "original error")
}

func TestCircuitBreaker_PanicIsRecovered(t *testing.T) {
	breaker := NewCircuitBreaker("panic-test", 30*time.Second, 3)

	err := breaker.Execute(func() error { panic("boom") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered: boom")
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewCircuitBreaker("ready-to-trip", 30*time.Second, 2)

	_ = breaker.Execute(func() error { return errors.New("failure 1") })
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
	_ = breaker.Execute(func() error { return errors.New("failure 2") })
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, IsOpen(err))
}

func TestCircuitBreaker_Recovers(t *testing.T) {
	breaker := NewCircuitBreaker("recovery", 50*time.Millisecond, 1)

	_ = breaker.Execute(func() error { return errors.New("trigger") })
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, breaker.State())

	assert.NoError(t, breaker.Execute(func() error { return nil }))
	assert.NotEqual(t, gobreaker.StateOpen, breaker.State())
}

func TestBreakerRegistry_Get(t *testing.T) {
	registry := NewBreakerRegistry(time.Second, 1)

	a := registry.Get("https://a.example/v1")
	assert.Same(t, a, registry.Get("https://a.example/v1"))
	assert.NotSame(t, a, registry.Get("https://b.example/v1"))
}

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestBreakerClient_PassesResponses(t *testing.T) {
	next := new(mocks.MockHTTPClient)
	next.On("Do", mock.Anything).Return(newResponse(http.StatusOK, `{"ok":true}`), nil).Once()

	client := NewBreakerClient(next, NewCircuitBreaker("ok", time.Second, 1))
	req, _ := http.NewRequest(http.MethodGet, "http://llm.local/v1/models", nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	next.AssertExpectations(t)
}

func TestBreakerClient_ServerErrorsTripTheBreaker(t *testing.T) {
	next := new(mocks.MockHTTPClient)
	next.On("Do", mock.Anything).Return(newResponse(http.StatusBadGateway, `{"error":"bad"}`), nil).Once()

	client := NewBreakerClient(next, NewCircuitBreaker("5xx", time.Minute, 1))
	req, _ := http.NewRequest(http.MethodPost, "http://llm.local/v1/chat/completions", nil)

	resp, err := client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	_, err = client.Do(req)
	require.Error(t, err)
	assert.True(t, IsOpen(err))
	next.AssertNumberOfCalls(t, "Do", 1)
}

func TestBreakerClient_TransportError(t *testing.T) {
	next := new(mocks.MockHTTPClient)
	next.On("Do", mock.Anything).Return(nil, errors.New("dial tcp: connection refused"))

	client := NewBreakerClient(next, NewCircuitBreaker("dial", time.Minute, 5))
	req, _ := http.NewRequest(http.MethodGet, "http://llm.local/v1/models", nil)

	_, err := client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
