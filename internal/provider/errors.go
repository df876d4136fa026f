package provider

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when a response body cannot be decoded
// into the expected shape.
var ErrMalformedResponse = errors.New("malformed provider response")

// ErrTruncated is returned when a wallet's history does not fit in the
// configured number of pages.
var ErrTruncated = errors.New("transaction history truncated by page limit")

// StatusError is returned for non-success HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// APIError is returned when the provider reports an error inside a 200 response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// retryable reports whether a status code is worth retrying.
func retryable(status int) bool {
	return status == 429 || status >= 500
}
