// Package metrics records latency, token usage and failures of LLM calls.
package metrics

import (
	"context"
	"time"

	"docassist/pkg/llm"
	"docassist/pkg/llm/llmerrors"
	"docassist/pkg/logx"
	"docassist/pkg/tokens"
)

// Recorder receives one observation per Complete call.
type Recorder interface {
	ObserveRequest(model, operation string, promptTokens, completionTokens int, cost float64, success bool, errorType string, duration time.Duration)
}

// UsageExtractor returns prompt and completion token counts.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// CostFunc prices a call in USD.
type CostFunc func(model string, promptTokens, completionTokens int) float64

// DefaultUsageExtractor counts tokens locally with tiktoken.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	for i := range req.Messages {
		promptTokens += tokens.Count(req.Messages[i].Content)
	}
	return promptTokens, tokens.Count(resp.Content)
}

type operationKey struct{}

// WithOperation labels calls made with ctx, e.g. "readme" or "follow_up".
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return "unknown"
}

// Middleware records every call. usage and cost may be nil.
func Middleware(recorder Recorder, usage UsageExtractor, cost CostFunc, logger *logx.Logger) llm.Middleware {
	if usage == nil {
		usage = DefaultUsageExtractor
	}
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()
				op := operationFrom(ctx)

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				var usd float64
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usage(req, resp)
					if cost != nil {
						usd = cost(model, promptTokens, completionTokens)
					}
				} else {
					errorType = llmerrors.TypeOf(err).String()
				}

				recorder.ObserveRequest(model, op, promptTokens, completionTokens, usd, err == nil, errorType, duration)
				if logger != nil {
					status := "success"
					if err != nil {
						status = "error"
					}
					logger.Info("LLM request: model=%s op=%s tokens=%d+%d status=%s duration=%dms",
						model, op, promptTokens, completionTokens, status, duration.Milliseconds())
				}
				return resp, err //nolint:wrapcheck
			},
			next.GetModelName,
		)
	}
}
