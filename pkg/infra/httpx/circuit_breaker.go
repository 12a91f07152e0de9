package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

var ErrUpstreamUnavailable = errors.New("upstream unavailable")

type CircuitBreaker interface {
	Execute(fn func() error) error
	State() gobreaker.State
}

type circuitBreakerWrapper struct {
	breaker *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(name string, timeout time.Duration, maxFailures uint32) CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}
	return &circuitBreakerWrapper{
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *circuitBreakerWrapper) Execute(fn func() error) (err error) {
	_, err = g.breaker.Execute(func() (res interface{}, fnErr error) {
		defer func() {
			if r := recover(); r != nil {
				fnErr = fmt.Errorf("panic recovered: %v", r)
			}
		}()
		return nil, fn()
	})
	if err != nil {
		return fmt.Errorf("breaker (%s): %w", g.breaker.Name(), err)
	}
	return nil
}

func (g *circuitBreakerWrapper) State() gobreaker.State {
	return g.breaker.State()
}

// IsOpen reports whether err was produced by an open or saturated breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// BreakerRegistry hands out one breaker per name, created on first use.
type BreakerRegistry struct {
	breakers    sync.Map
	timeout     time.Duration
	maxFailures uint32
}

func NewBreakerRegistry(timeout time.Duration, maxFailures uint32) *BreakerRegistry {
	return &BreakerRegistry{timeout: timeout, maxFailures: maxFailures}
}

func (r *BreakerRegistry) Get(name string) CircuitBreaker {
	if v, ok := r.breakers.Load(name); ok {
		return v.(CircuitBreaker)
	}
	v, _ := r.breakers.LoadOrStore(name, NewCircuitBreaker(name, r.timeout, r.maxFailures))
	return v.(CircuitBreaker)
}

type breakerClient struct {
	next    Client
	breaker CircuitBreaker
}

// NewBreakerClient routes every request of next through breaker. Transport
// errors, 429 and 5xx responses count as failures; failed responses are still
// returned to the caller so it can read the error body.
func NewBreakerClient(next Client, breaker CircuitBreaker) Client {
	return &breakerClient{next: next, breaker: breaker}
}

func (c *breakerClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.breaker.Execute(func() error {
		var err error
		resp, err = c.next.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
		}
		return nil
	})
	if resp != nil && errors.Is(err, ErrUpstreamUnavailable) {
		return resp, nil
	}
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return resp, nil
}
