package scraper

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request (HTTP 429).
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrClientStatus indicates a non-retryable 4xx response. Retrying a page
// that genuinely does not exist will not help.
type ErrClientStatus struct {
	Status int
	Err    error
}

func (e ErrClientStatus) Error() string {
	return fmt.Errorf("client_error (%d): %w", e.Status, e.Err).Error()
}

func (e ErrClientStatus) Unwrap() error {
	return e.Err
}

// ErrServerStatus indicates a retryable 5xx response.
type ErrServerStatus struct {
	Status int
	Err    error
}

func (e ErrServerStatus) Error() string {
	return fmt.Errorf("server_error (%d): %w", e.Status, e.Err).Error()
}

func (e ErrServerStatus) Unwrap() error {
	return e.Err
}

// ErrRetriesExhausted indicates the retry budget ran out. It carries the
// last observed failure for diagnostics.
type ErrRetriesExhausted struct {
	Attempts int
	Err      error
}

func (e ErrRetriesExhausted) Error() string {
	return fmt.Errorf("retries_exhausted after %d attempts: %w", e.Attempts, e.Err).Error()
}

func (e ErrRetriesExhausted) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt could plausibly succeed.
// Unknown errors are treated as transient, matching the usual posture for
// network failures that resist classification.
func retryable(err error) bool {
	var client ErrClientStatus
	return !errors.As(err, &client)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var client ErrClientStatus
	if errors.As(err, &client) {
		return "client_status"
	}
	var server ErrServerStatus
	if errors.As(err, &server) {
		return "server_status"
	}
	var exhausted ErrRetriesExhausted
	if errors.As(err, &exhausted) {
		return "retries_exhausted"
	}
	return "other"
}
