package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/llm"
	"docassist/pkg/llm/llmerrors"
)

func fastPolicy() *Policy {
	return NewPolicy(Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}, nil)
}

func request() llm.CompletionRequest {
	return llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")})
}

func TestCalculateDelay(t *testing.T) {
	p := NewPolicy(Config{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}, nil)
	assert.Equal(t, time.Duration(0), p.CalculateDelay(1))
	assert.Equal(t, 100*time.Millisecond, p.CalculateDelay(2))
	assert.Equal(t, 200*time.Millisecond, p.CalculateDelay(3))
	assert.Equal(t, 300*time.Millisecond, p.CalculateDelay(4))
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.False(t, ShouldRetry(errors.New("plain")))
	assert.True(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down")))
	assert.True(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeTransient, "503")))
	assert.False(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")))
	assert.False(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeUnknown, "?")))
}

func TestMiddlewareRecovers(t *testing.T) {
	mock := llm.NewMockClient("m").
		Fail(llmerrors.NewError(llmerrors.ErrorTypeTransient, "blip")).
		Respond("ok")

	client := llm.Chain(mock, Middleware(fastPolicy()))
	resp, err := client.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Len(t, mock.Requests(), 2)
	assert.Equal(t, "m", client.GetModelName())
}

func TestMiddlewareStopsOnPermanentError(t *testing.T) {
	mock := llm.NewMockClient("m").Fail(llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")).Respond("never")

	_, err := llm.Chain(mock, Middleware(fastPolicy())).Complete(context.Background(), request())
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Len(t, mock.Requests(), 1)
}

func TestMiddlewareExhausts(t *testing.T) {
	transient := llmerrors.NewError(llmerrors.ErrorTypeTransient, "down")
	mock := llm.NewMockClient("m").Fail(transient).Fail(transient).Fail(transient)

	_, err := llm.Chain(mock, Middleware(fastPolicy())).Complete(context.Background(), request())
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeServiceUnavailable))
	assert.ErrorIs(t, err, transient)
	assert.Len(t, mock.Requests(), 3)
}
