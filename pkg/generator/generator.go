// Package generator produces README documents and interview questions with
// a language model.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docassist/pkg/config"
	"docassist/pkg/llm"
	"docassist/pkg/llm/llmerrors"
	"docassist/pkg/llm/middleware/metrics"
	"docassist/pkg/logx"
	"docassist/pkg/persistence"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
	"docassist/pkg/templates"
	"docassist/pkg/tokens"
)

// Operation labels used for metrics.
const (
	OpReadme             = "readme"
	OpConversationStart  = "conversation_start"
	OpConversationFollow = "conversation_follow_up"
	OpConversationReadme = "conversation_readme"
)

// ErrPromptTooLarge is returned when a prompt cannot fit the model's context window.
var ErrPromptTooLarge = errors.New("prompt exceeds model context window")

// ErrEmptyTopic is returned by the conversation operations for a blank topic.
var ErrEmptyTopic = errors.New("topic is required")

// headings maps every optional field to its README section title.
//
//nolint:gochecknoglobals
var headings = map[sections.Field]string{
	sections.FieldPrerequisites:         "Prerequisites",
	sections.FieldEnvironmentalSetup:    "Environment Setup",
	sections.FieldLocalDevServer:        "Development Server",
	sections.FieldDeploymentInfo:        "Building for Deployment",
	sections.FieldTesting:               "Testing",
	sections.FieldAdditionalInformation: "Additional Notes",
}

// Generator wraps an LLM client with prompt rendering, context-window
// checks and history recording.
type Generator struct {
	client   llm.LLMClient
	renderer *templates.Renderer
	counter  *tokens.Counter
	history  chan<- *persistence.Request
	logger   *logx.Logger
	now      func() time.Time

	maxContext int
	maxTokens  int
}

// Option configures a Generator.
type Option func(*Generator)

// WithHistory records every generation on the persistence channel.
func WithHistory(ch chan<- *persistence.Request) Option {
	return func(g *Generator) { g.history = ch }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator for client.
func New(client llm.LLMClient, opts ...Option) (*Generator, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	counter, err := tokens.NewCounter(client.GetModelName())
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	info, _ := config.GetModelInfo(client.GetModelName())

	g := &Generator{
		client:     client,
		renderer:   renderer,
		counter:    counter,
		logger:     logx.NewLogger("generator"),
		now:        time.Now,
		maxContext: info.MaxContextTokens,
		maxTokens:  llm.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Model returns the model name of the underlying client.
func (g *Generator) Model() string {
	return g.client.GetModelName()
}

// Generate renders a README for req. It implements submission.Generator,
// so the form flow can run in-process without an HTTP hop.
func (g *Generator) Generate(ctx context.Context, req submission.Request) (*submission.Response, error) {
	fields := req.Fields
	if req.Sections != nil {
		fields = submission.Filter(fields, *req.Sections)
	}

	data := &templates.TemplateData{
		ProjectName: strings.TrimSpace(fields[sections.FieldProjectName]),
		Description: strings.TrimSpace(fields[sections.FieldDescription]),
		Sections:    readmeSections(fields),
	}
	if data.ProjectName == "" {
		return nil, fmt.Errorf("projectName is required")
	}

	system, err := g.renderer.Render(templates.ReadmeSystemTemplate, data)
	if err != nil {
		return nil, err
	}
	user, err := g.renderer.Render(templates.ReadmeUserTemplate, data)
	if err != nil {
		return nil, err
	}

	content, err := g.complete(ctx, OpReadme, system, user, &persistence.Generation{
		Source:       persistence.SourceForm,
		Title:        data.ProjectName,
		SectionsJSON: sectionsJSON(req.Sections),
		InputJSON:    fieldsJSON(fields),
		Filename:     submission.DefaultFilename,
	})
	if err != nil {
		return nil, err
	}
	return &submission.Response{Markdown: content, Filename: submission.DefaultFilename}, nil
}

// readmeSections lists supplied optional fields in catalog order.
func readmeSections(fields map[sections.Field]string) []templates.SectionData {
	var out []templates.SectionData
	for _, def := range steps.Catalog() {
		for _, f := range def.Fields {
			heading, ok := headings[f]
			if !ok {
				continue
			}
			if v := strings.TrimSpace(fields[f]); v != "" {
				out = append(out, templates.SectionData{Heading: heading, Content: v})
			}
		}
	}
	return out
}

// StartConversation asks the opening interview questions for topic.
func (g *Generator) StartConversation(ctx context.Context, topic string) (string, error) {
	return g.ask(ctx, OpConversationStart, &templates.TemplateData{Topic: strings.TrimSpace(topic)})
}

// FollowUp asks further questions given the previous questions and the answer.
func (g *Generator) FollowUp(ctx context.Context, topic, previousQuestions, userResponse string) (string, error) {
	return g.ask(ctx, OpConversationFollow, &templates.TemplateData{
		Topic:             strings.TrimSpace(topic),
		PreviousQuestions: previousQuestions,
		UserResponse:      userResponse,
	})
}

func (g *Generator) ask(ctx context.Context, op string, data *templates.TemplateData) (string, error) {
	if data.Topic == "" {
		return "", ErrEmptyTopic
	}
	system, err := g.renderer.Render(templates.ConversationSystemTemplate, data)
	if err != nil {
		return "", err
	}
	user, err := g.renderer.Render(templates.ConversationUserTemplate, data)
	if err != nil {
		return "", err
	}
	return g.complete(ctx, op, system, user, nil)
}

// ConversationReadme writes a README from a finished interview.
func (g *Generator) ConversationReadme(ctx context.Context, topic string, history []templates.Turn) (string, error) {
	data := &templates.TemplateData{Topic: strings.TrimSpace(topic), History: history}
	if data.Topic == "" {
		return "", ErrEmptyTopic
	}
	system, err := g.renderer.Render(templates.ConversationReadmeSystemTemplate, data)
	if err != nil {
		return "", err
	}
	user, err := g.renderer.Render(templates.ConversationReadmeUserTemplate, data)
	if err != nil {
		return "", err
	}

	input, _ := json.Marshal(history) //nolint:errchkjson // plain structs
	return g.complete(ctx, OpConversationReadme, system, user, &persistence.Generation{
		Source:    persistence.SourceConversation,
		Title:     data.Topic,
		InputJSON: string(input),
		Filename:  submission.DefaultFilename,
	})
}

// complete runs one system+user exchange. When record is non-nil the
// outcome is queued to the history channel.
func (g *Generator) complete(ctx context.Context, op, system, user string, record *persistence.Generation) (string, error) {
	promptTokens := g.counter.Count(system) + g.counter.Count(user)
	if g.maxContext > 0 && promptTokens+g.maxTokens > g.maxContext {
		return "", llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, ErrPromptTooLarge,
			fmt.Sprintf("prompt needs %d tokens plus %d for the answer, model allows %d", promptTokens, g.maxTokens, g.maxContext))
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(user),
	})
	req.MaxTokens = g.maxTokens

	start := g.now()
	resp, err := g.client.Complete(metrics.WithOperation(ctx, op), req)
	elapsed := g.now().Sub(start)

	content := ""
	if err == nil {
		content = strings.TrimSpace(resp.Content)
		if content == "" {
			err = llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "model returned an empty response")
		}
	}
	if op == OpReadme || op == OpConversationReadme {
		content = stripFence(content)
	}

	if err != nil {
		g.logger.Error("%s failed after %dms: %v", op, elapsed.Milliseconds(), err)
	} else {
		g.logger.Info("%s completed in %dms (%d prompt tokens)", op, elapsed.Milliseconds(), promptTokens)
	}

	if record != nil {
		g.record(record, content, promptTokens, elapsed, err)
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

func (g *Generator) record(gen *persistence.Generation, content string, promptTokens int, elapsed time.Duration, err error) {
	if g.history == nil {
		return
	}
	gen.Model = g.Model()
	gen.PromptTokens = promptTokens
	gen.DurationMS = elapsed.Milliseconds()
	gen.CreatedAt = g.now().UTC()
	if err != nil {
		gen.Status = persistence.StatusFailed
		gen.ErrorCategory = llmerrors.TypeOf(err).String()
	} else {
		gen.Status = persistence.StatusSucceeded
		gen.Markdown = content
		gen.CompletionTokens = g.counter.Count(content)
		gen.CostUSD, _ = config.CalculateCost(gen.Model, gen.PromptTokens, gen.CompletionTokens)
	}
	persistence.PersistGeneration(gen, g.history)
}

// stripFence unwraps a document the model wrapped in a single ```markdown fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return s
	}
	if lang := strings.TrimSpace(s[3:nl]); lang != "" && lang != "markdown" && lang != "md" {
		return s
	}
	body := strings.TrimSuffix(s[nl+1:], "```")
	return strings.TrimSpace(body)
}

func sectionsJSON(cfg *sections.Config) string {
	if cfg == nil {
		return ""
	}
	data, _ := json.Marshal(cfg) //nolint:errchkjson // bool struct
	return string(data)
}

func fieldsJSON(fields map[sections.Field]string) string {
	data, _ := json.Marshal(fields) //nolint:errchkjson // string map
	return string(data)
}
