package resilience

import (
	"errors"
	"fmt"
	"net/http"
)

// Doer executes HTTP requests
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResilientHTTPClient wraps an HTTP client with circuit breaker protection
type ResilientHTTPClient struct {
	client Doer
	cb     *CircuitBreaker
}

// NewResilientHTTPClient creates a new HTTP client with circuit breaker protection
func NewResilientHTTPClient(client Doer, cb *CircuitBreaker) *ResilientHTTPClient {
	return &ResilientHTTPClient{
		client: client,
		cb:     cb,
	}
}

type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: HTTP %d", e.status)
}

// Do executes an HTTP request through the circuit breaker. Transport errors,
// 429 and 5xx count as failures. The response is still returned for 429/5xx
// so the caller can read the service's error body.
func (rc *ResilientHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := rc.cb.Execute(func() error {
		var e error
		resp, e = rc.client.Do(req)
		if e != nil {
			return e
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &serverError{status: resp.StatusCode}
		}
		return nil
	})

	var se *serverError
	if errors.As(err, &se) {
		return resp, nil
	}
	return resp, err
}
