package persistence

import (
	"time"

	"github.com/google/uuid"
)

// Source says which flow produced a generation.
type Source string

const (
	SourceForm         Source = "form"
	SourceConversation Source = "conversation"
)

// Generation statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Generation is one README generation attempt.
type Generation struct {
	ID               string    `json:"id"`
	Source           Source    `json:"source"`
	Title            string    `json:"title"` // project name or conversation topic
	SectionsJSON     string    `json:"sections,omitempty"`
	InputJSON        string    `json:"input,omitempty"`
	Markdown         string    `json:"markdown,omitempty"`
	Filename         string    `json:"filename,omitempty"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	DurationMS       int64     `json:"duration_ms"`
	Status           string    `json:"status"`
	ErrorCategory    string    `json:"error_category,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// GenerateGenerationID returns a new random id.
func GenerateGenerationID() string {
	return uuid.New().String()
}

// GenerationFilter narrows ListGenerations. Zero values match everything.
type GenerationFilter struct {
	Source Source
	Status string
	Limit  int
}

// GenerationStats aggregates the history table.
type GenerationStats struct {
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Tokens    int     `json:"tokens"`
	CostUSD   float64 `json:"cost_usd"`
}

// Operation names a write handled by the persistence worker.
type Operation string

const (
	OpInsertGeneration  Operation = "insert_generation"
	OpSaveFormSession   Operation = "save_form_session"
	OpDeleteFormSession Operation = "delete_form_session"
)

// Request is one queued write. Response, when set, receives the result.
type Request struct {
	Operation Operation
	Data      any
	Response  chan<- error
}
