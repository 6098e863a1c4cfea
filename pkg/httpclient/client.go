package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"Minerva/pkg/circuitbreaker"
)

// Options configures the circuit breaker protecting a Client.
type Options struct {
	Timeout          time.Duration
	BreakerEnabled   bool
	FailureThreshold uint32
	SuccessThreshold uint32
	BreakerTimeout   time.Duration
}

// DefaultOptions returns options suitable for talking to third-party REST APIs.
func DefaultOptions() Options {
	return Options{
		Timeout:          30 * time.Second,
		BreakerEnabled:   true,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		BreakerTimeout:   30 * time.Second,
	}
}

// Client is a custom HTTP client that wraps the standard http.Client
// and provides built-in support for circuit breaking.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient creates a new Client with a circuit breaker configured.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	hc := &http.Client{Timeout: opts.Timeout}
	if !opts.BreakerEnabled {
		return &Client{httpClient: hc}
	}

	return &Client{
		httpClient: hc,
		breaker:    circuitbreaker.New(opts.FailureThreshold, opts.SuccessThreshold, opts.BreakerTimeout),
	}
}

// Do executes an HTTP request with circuit breaker protection.
// It considers status codes >= 500 as failures.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	var err error

	// The breaker's Execute function returns its own error, which might be ErrCircuitOpen
	// or the error from the operation itself.
	_, breakerErr := c.breaker.Execute(func() (interface{}, error) {
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		// Treat server-side errors as failures for the circuit breaker
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error: received status code %d", resp.StatusCode)
		}

		return resp, nil
	})

	if breakerErr != nil {
		return nil, breakerErr
	}

	return resp, nil
}
