package llm

import (
	"context"
	"errors"
	"sync"
)

// MockClient replays canned responses in order. When the queue is empty
// it echoes the last user message.
type MockClient struct {
	mu        sync.Mutex
	model     string
	responses []CompletionResponse
	errs      []error
	requests  []CompletionRequest
}

// NewMockClient returns a mock targeting model.
func NewMockClient(model string) *MockClient {
	return &MockClient{model: model}
}

// Respond queues a successful completion.
func (m *MockClient) Respond(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, CompletionResponse{Content: content, StopReason: "end_turn"})
	m.errs = append(m.errs, nil)
	return m
}

// Fail queues an error.
func (m *MockClient) Fail(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, CompletionResponse{})
	m.errs = append(m.errs, err)
	return m
}

func (m *MockClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err //nolint:wrapcheck
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, in)

	if len(m.responses) == 0 {
		for i := len(in.Messages) - 1; i >= 0; i-- {
			if in.Messages[i].Role == RoleUser {
				return CompletionResponse{Content: in.Messages[i].Content, StopReason: "end_turn"}, nil
			}
		}
		return CompletionResponse{}, errors.New("mock: no user message")
	}

	resp, err := m.responses[0], m.errs[0]
	m.responses, m.errs = m.responses[1:], m.errs[1:]
	return resp, err
}

func (m *MockClient) GetModelName() string {
	return m.model
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
