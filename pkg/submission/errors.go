package submission

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Category classifies a failed submission.
type Category string

const (
	CategoryNetwork    Category = "NETWORK_ERROR"
	CategoryTimeout    Category = "TIMEOUT_ERROR"
	CategoryValidation Category = "VALIDATION_ERROR"
	CategoryAPI        Category = "API_ERROR"
	CategoryUnknown    Category = "UNKNOWN_ERROR"
)

var userMessages = map[Category]string{
	CategoryNetwork:    "Network error. Please check your connection and try again.",
	CategoryTimeout:    "Request timed out. Please try again.",
	CategoryValidation: "Please check your input and try again.",
	CategoryAPI:        "Server error. Please try again later.",
	CategoryUnknown:    "An unexpected error occurred. Please try again.",
}

// UserMessage is the fixed text shown for the category.
func (c Category) UserMessage() string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return userMessages[CategoryUnknown]
}

// ErrorBody is the JSON error shape returned by the documentation service.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusError is a non-2xx response from the documentation service.
type StatusError struct {
	StatusCode int
	Body       ErrorBody
}

func (e *StatusError) Error() string {
	if e.Body.Error == "" {
		return fmt.Sprintf("documentation service returned status %d", e.StatusCode)
	}
	if e.Body.Details != "" {
		return fmt.Sprintf("%s: %s", e.Body.Error, e.Body.Details)
	}
	return e.Body.Error
}

// Error is a classified submission failure.
type Error struct {
	Category   Category
	Message    string
	StatusCode int
	Timestamp  time.Time
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text safe to show to the user.
func (e *Error) UserMessage() string {
	return e.Category.UserMessage()
}

// Classify wraps err in an *Error. Deadline expiry is a timeout, transport
// failures are network errors, a 400 is a validation error and any other
// non-2xx status is an API error.
func Classify(err error, now time.Time) *Error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	out := &Error{Category: CategoryUnknown, Message: err.Error(), Timestamp: now, Err: err}

	var statusErr *StatusError
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		out.Category = CategoryTimeout
	case errors.As(err, &statusErr):
		out.StatusCode = statusErr.StatusCode
		if statusErr.Body.Error != "" {
			out.Message = statusErr.Body.Error
		}
		if statusErr.StatusCode == 400 {
			out.Category = CategoryValidation
		} else {
			out.Category = CategoryAPI
		}
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Category = CategoryTimeout
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		out.Category = CategoryNetwork
	}
	return out
}
