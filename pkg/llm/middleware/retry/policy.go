// Package retry retries failed LLM calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"docassist/pkg/llm/llmerrors"
)

// Config is the retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"` // including the first
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultConfig keeps a generation inside the submission timeout.
//
//nolint:gochecknoglobals
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  250 * time.Millisecond,
	MaxDelay:      4 * time.Second,
	BackoffFactor: 2.0,
}

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) bool

// ShouldRetry retries classified errors that are retryable. Context
// cancellation and unclassified errors are never retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable() && llmErr.Type != llmerrors.ErrorTypeUnknown
	}
	return false
}

type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy uses ShouldRetry when classifier is nil.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	return &Policy{Config: config, Classifier: classifier}
}

// CalculateDelay returns the wait before attempt (1-based). The first
// attempt never waits.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))
	if delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}
	return delay
}

func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
