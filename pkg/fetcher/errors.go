package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrBadAddress is returned for addresses that cannot be parsed.
	// These are programmer errors and are never retried.
	ErrBadAddress = errors.New("malformed address")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassAddress represents malformed, unparseable addresses.
	ErrorClassAddress ErrorClass = "address"

	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// FetchError carries the classification and last underlying cause of a
// failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Class      ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s error (status %d): %s", e.Class, e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s error: %s: %v", e.Class, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s error: %s", e.Class, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyStatus categorizes a non-2xx HTTP status for observability and
// backoff selection.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
