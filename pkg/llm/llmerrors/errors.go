// Package llmerrors classifies provider failures for retry and reporting.
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType is the class of an LLM failure.
type ErrorType int8

const (
	// ErrorTypeRateLimit is a 429 or quota error.
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient is a 5xx, reset connection or timeout.
	ErrorTypeTransient
	// ErrorTypeEmptyResponse is a success status with no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth is a 401/403 or a bad API key.
	ErrorTypeAuth
	// ErrorTypeBadPrompt is a malformed or oversized request.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is anything unclassified.
	ErrorTypeUnknown
	// ErrorTypeServiceUnavailable is emitted once retries are exhausted.
	ErrorTypeServiceUnavailable
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeServiceUnavailable:
		return "service_unavailable"
	default:
		return "invalid"
	}
}

// RetryConfig is the backoff used for one error type.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfigs holds the per-type retry defaults.
//
//nolint:gochecknoglobals
var DefaultRetryConfigs = map[ErrorType]RetryConfig{
	ErrorTypeEmptyResponse: {MaxRetries: 2, InitialDelay: time.Second, MaxDelay: 8 * time.Second, BackoffFactor: 2.0},
	ErrorTypeRateLimit:     {MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 20 * time.Second, BackoffFactor: 2.0},
	ErrorTypeTransient:     {MaxRetries: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second, BackoffFactor: 2.0},
	ErrorTypeUnknown:       {MaxRetries: 1, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2.0},
}

// Error is a classified LLM error.
type Error struct {
	Err        error
	Message    string
	Provider   string // set by FromStatus and Classify
	Type       ErrorType
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type, e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the type is worth another attempt.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeServiceUnavailable:
		return false
	default:
		return true
	}
}

// GetRetryConfig returns the retry configuration for the error's type.
func (e *Error) GetRetryConfig() RetryConfig {
	if cfg, ok := DefaultRetryConfigs[e.Type]; ok {
		return cfg
	}
	return RetryConfig{}
}

// Is reports whether err is an *Error of errorType.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the class of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// ProviderOpenAI is the provider name the OpenAI client reports.
const ProviderOpenAI = "OpenAI"

func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// NewServiceUnavailableError marks retries as exhausted.
func NewServiceUnavailableError(cause error, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeServiceUnavailable,
		Err:     cause,
		Message: fmt.Sprintf("service unavailable after %d attempts", attempts),
	}
}

// FromStatus classifies an HTTP status from a provider. provider prefixes the message.
func FromStatus(provider string, statusCode int, cause error) *Error {
	e := &Error{Err: cause, StatusCode: statusCode, Provider: provider}
	switch {
	case statusCode == 401 || statusCode == 403:
		e.Type, e.Message = ErrorTypeAuth, provider+" authentication failed"
	case statusCode == 429:
		e.Type, e.Message = ErrorTypeRateLimit, provider+" rate limit exceeded"
	case statusCode == 400 || statusCode == 404 || statusCode == 413 || statusCode == 422:
		e.Type, e.Message = ErrorTypeBadPrompt, provider+" rejected the request"
	case statusCode >= 500:
		e.Type, e.Message = ErrorTypeTransient, provider+" server error"
	default:
		e.Type, e.Message = ErrorTypeUnknown, provider+" API error"
	}
	if cause != nil {
		e.Message += ": " + cause.Error()
	}
	return e
}

// Classify maps an unstructured provider error by context state and message text.
func Classify(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	e := classify(provider, err)
	e.Provider = provider
	return e
}

func classify(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransient, err, provider+" request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeTransient, err, provider+" request canceled")
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "connection") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "eof") || strings.Contains(lower, "reset"):
		return NewErrorWithCause(ErrorTypeTransient, err, provider+" network error: "+err.Error())
	case strings.Contains(lower, "rate") || strings.Contains(lower, "quota"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, provider+" rate limiting: "+err.Error())
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key"):
		return NewErrorWithCause(ErrorTypeAuth, err, provider+" authentication error: "+err.Error())
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, provider+" API error: "+err.Error())
	}
}

// ProviderOf returns the first provider recorded in err's chain of LLM
// errors, looking through wrappers such as exhausted retries.
func ProviderOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Provider != "" {
			return e.Provider
		}
		err = e.Err
	}
	return ""
}
