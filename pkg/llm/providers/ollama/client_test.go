package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/llm"
	"docassist/pkg/llm/llmerrors"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		hostURL string
		model   string
	}{
		{"valid host and model", "http://localhost:11434", "phi4:latest"},
		{"empty host uses default", "", "llama3.1:8b"},
		{"invalid URL falls back to default", "://bad", "mistral:7b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(llm.LLMConfig{BaseURL: tt.hostURL, ModelName: tt.model}, nil)
			require.NotNil(t, client)
			assert.Equal(t, tt.model, client.GetModelName())
		})
	}
}

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"# README"},"done":true,"done_reason":"stop"}`))
	}))
	defer srv.Close()

	client := NewClient(llm.LLMConfig{BaseURL: srv.URL, ModelName: "llama3"}, srv.Client())
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage("You write READMEs"),
		llm.NewUserMessage("Project: demo"),
	}))
	require.NoError(t, err)
	assert.Equal(t, "# README", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "llama3", got["model"])
	assert.Len(t, got["messages"], 2)
}

func TestCompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found"}`))
	}))
	defer srv.Close()

	client := NewClient(llm.LLMConfig{BaseURL: srv.URL, ModelName: "nope"}, srv.Client())
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))

	_, err = client.Complete(context.Background(), llm.CompletionRequest{})
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}

func TestStopReason(t *testing.T) {
	tests := []struct {
		resp api.ChatResponse
		want string
	}{
		{api.ChatResponse{Done: false}, "incomplete"},
		{api.ChatResponse{Done: true}, "end_turn"},
		{api.ChatResponse{Done: true, DoneReason: "length"}, "max_tokens"},
		{api.ChatResponse{Done: true, DoneReason: "load"}, "load"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stopReason(&tt.resp))
	}
}
