package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"docassist/pkg/llm"
)

func TestMiddlewareSetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	base := llm.WrapClient(
		func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			deadline, ok = ctx.Deadline()
			<-ctx.Done()
			return llm.CompletionResponse{}, ctx.Err()
		},
		func() string { return "slow" },
	)

	start := time.Now()
	_, err := Middleware(20*time.Millisecond)(base).Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if !ok || deadline.Sub(start) > time.Second {
		t.Errorf("Expected a short deadline, got %v (set=%v)", deadline.Sub(start), ok)
	}
}
