package client

import (
	"errors"
	"fmt"
)

// Common errors carried by failure outcomes.
var (
	// ErrRetryExhausted is returned when the query's transport retry budget is used up.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is returned when the run is cancelled while a request waits.
	ErrCancelled = errors.New("context cancelled")

	// ErrDomain marks a non-retryable error reported by the API.
	ErrDomain = errors.New("api reported an error")

	// ErrCongestion marks the API's rate-limit error code.
	ErrCongestion = errors.New("api rate limit congestion")
)

// ErrorClass represents a classification of failed requests.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection and transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents an attempt that exceeded its deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassHTTPStatus represents a non-2xx HTTP status.
	ErrorClassHTTPStatus ErrorClass = "http_status"

	// ErrorClassDecode represents a body that is not a valid API response.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassCongestion represents the API's rate-limit error code.
	ErrorClassCongestion ErrorClass = "congestion"

	// ErrorClassDomain represents any other API-reported error.
	ErrorClassDomain ErrorClass = "domain"

	// ErrorClassCancelled represents a request abandoned on run shutdown.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// APIError represents a failed POI API request with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Code       string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("POI API %s error", e.ErrorClass)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" infocode=%s", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}
