// Package openai implements llm.LLMClient on the OpenAI Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"docassist/pkg/llm"
	"docassist/pkg/llm/llmerrors"
)

const providerName = llmerrors.ProviderOpenAI

type Client struct {
	client          openai.Client
	model           string
	maxOutputTokens int
}

// NewClient builds a client for model. baseURL may be empty.
func NewClient(cfg llm.LLMConfig, maxOutputTokens int) llm.LLMClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client:          openai.NewClient(opts...),
		model:           cfg.ModelName,
		maxOutputTokens: maxOutputTokens,
	}
}

// flatten renders the conversation as a single input string.
func flatten(messages []llm.CompletionMessage) string {
	var b strings.Builder
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			fmt.Fprintf(&b, "System: %s\n\n", msg.Content)
		case llm.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n\n", msg.Content)
		default:
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	maxTokens := in.MaxTokens
	if c.maxOutputTokens > 0 && maxTokens > c.maxOutputTokens {
		maxTokens = c.maxOutputTokens
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(flatten(in.Messages))},
	}
	if maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	content := resp.OutputText()
	if content == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "OpenAI returned no text")
	}
	return llm.CompletionResponse{Content: content, StopReason: string(resp.Status)}, nil
}

func (c *Client) GetModelName() string {
	return c.model
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llmerrors.FromStatus(providerName, apiErr.StatusCode, err)
	}
	return llmerrors.Classify(providerName, err)
}
