// Package templates renders the prompts sent to the language model.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tpl.md
var templateFS embed.FS

// SectionData is one "## Heading" block of a README prompt.
type SectionData struct {
	Heading string
	Content string
}

// Turn is one question/answer exchange of a conversation.
type Turn struct {
	Questions    string `json:"questions"`
	UserResponse string `json:"userResponse"`
}

// TemplateData holds everything a prompt template may reference.
type TemplateData struct {
	ProjectName string
	Description string
	Sections    []SectionData

	// Conversational variant.
	Topic             string
	PreviousQuestions string
	UserResponse      string
	History           []Turn
}

// PromptTemplate names an embedded template.
type PromptTemplate string

const (
	ReadmeSystemTemplate             PromptTemplate = "prompts/readme_system.tpl.md"
	ReadmeUserTemplate               PromptTemplate = "prompts/readme_user.tpl.md"
	ConversationSystemTemplate       PromptTemplate = "prompts/conversation_system.tpl.md"
	ConversationUserTemplate         PromptTemplate = "prompts/conversation_user.tpl.md"
	ConversationReadmeSystemTemplate PromptTemplate = "prompts/conversation_readme_system.tpl.md"
	ConversationReadmeUserTemplate   PromptTemplate = "prompts/conversation_readme_user.tpl.md"
)

// Renderer holds the parsed templates.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[PromptTemplate]*template.Template)}

	templateNames := []PromptTemplate{
		ReadmeSystemTemplate,
		ReadmeUserTemplate,
		ConversationSystemTemplate,
		ConversationUserTemplate,
		ConversationReadmeSystemTemplate,
		ConversationReadmeUserTemplate,
	}

	for _, name := range templateNames {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Funcs(template.FuncMap{
			"trim": strings.TrimSpace,
		}).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes templateName with data.
func (r *Renderer) Render(templateName PromptTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// GetAvailableTemplates lists the loaded template names.
func (r *Renderer) GetAvailableTemplates() []PromptTemplate {
	names := make([]PromptTemplate, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
