package templates

import (
	"strings"
	"testing"
)

func TestNewRenderer(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	if got := len(renderer.GetAvailableTemplates()); got != 6 {
		t.Errorf("loaded %d templates, want 6", got)
	}
}

func TestRenderReadmePrompts(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	data := &TemplateData{
		ProjectName: "Atlas",
		Description: "A map tile server.",
		Sections: []SectionData{
			{Heading: "Prerequisites", Content: "Go 1.25"},
			{Heading: "Testing", Content: "make test"},
		},
	}

	system, err := renderer.Render(ReadmeSystemTemplate, data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(system, "- Prerequisites") || !strings.Contains(system, "- Testing") {
		t.Errorf("system prompt missing section list:\n%s", system)
	}

	user, err := renderer.Render(ReadmeUserTemplate, data)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# Atlas", "A map tile server.", "## Prerequisites\n\nGo 1.25", "## Testing\n\nmake test"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "Deployment") {
		t.Error("user prompt mentions a section that was not supplied")
	}
}

func TestRenderConversationUser(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}

	first, err := renderer.Render(ConversationUserTemplate, &TemplateData{Topic: "CLI for backups"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(first, "Ask initial questions") {
		t.Errorf("first turn prompt:\n%s", first)
	}

	followUp, err := renderer.Render(ConversationUserTemplate, &TemplateData{
		Topic:             "CLI for backups",
		PreviousQuestions: "Which OS?",
		UserResponse:      "Linux only",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Previous questions: Which OS?", "User's response: Linux only", "follow-up questions"} {
		if !strings.Contains(followUp, want) {
			t.Errorf("follow-up prompt missing %q:\n%s", want, followUp)
		}
	}
}

func TestRenderConversationReadmeUser(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	out, err := renderer.Render(ConversationReadmeUserTemplate, &TemplateData{
		Topic: "CLI for backups",
		History: []Turn{
			{Questions: "Which OS?", UserResponse: "Linux"},
			{Questions: "How to install?", UserResponse: "go install"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Q: Which OS?\nA: Linux\n\nQ: How to install?\nA: go install") {
		t.Errorf("history not rendered as expected:\n%s", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := renderer.Render("nope.tpl.md", &TemplateData{}); err == nil {
		t.Error("expected error for unknown template")
	}
}
