package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/llm"
	"docassist/pkg/llm/llmerrors"
)

func TestFlatten(t *testing.T) {
	got := flatten([]llm.CompletionMessage{
		llm.NewSystemMessage("be brief"),
		llm.NewUserMessage("question"),
		llm.NewAssistantMessage("answer"),
		llm.NewUserMessage("follow up"),
	})
	assert.Equal(t, "System: be brief\n\nquestion\n\nAssistant: answer\n\nfollow up", got)
}

func TestCompleteClassifiesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewClient(llm.LLMConfig{APIKey: "sk-test", ModelName: "gpt-4.1-mini", BaseURL: srv.URL}, 0)
	assert.Equal(t, "gpt-4.1-mini", client.GetModelName())

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Contains(t, err.Error(), "OpenAI")
}
