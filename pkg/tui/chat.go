package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"docassist/pkg/templates"
)

// DoneCommand ends the interview and writes the README.
const DoneCommand = "/done"

// Interviewer asks documentation questions and writes the final README.
type Interviewer interface {
	StartConversation(ctx context.Context, topic string) (string, error)
	FollowUp(ctx context.Context, topic, previousQuestions, userResponse string) (string, error)
	ConversationReadme(ctx context.Context, topic string, history []templates.Turn) (string, error)
}

// AskFunc prompts for one free-text answer.
type AskFunc func(title, description string) (string, error)

// Chat runs the conversational interview.
type Chat struct {
	docs       Interviewer
	out        io.Writer
	ask        AskFunc
	outputPath string
	width      int
}

// NewChat returns an interview over docs. A nil ask prompts with huh.
func NewChat(docs Interviewer, out io.Writer, ask AskFunc, outputPath string) *Chat {
	if out == nil {
		out = os.Stdout
	}
	if ask == nil {
		ask = askWithHuh
	}
	return &Chat{docs: docs, out: out, ask: ask, outputPath: outputPath, width: TerminalWidth(defaultMarkdownWidth)}
}

func askWithHuh(title, description string) (string, error) {
	var answer string
	err := huh.NewForm(huh.NewGroup(
		huh.NewText().Title(title).Description(description).Value(&answer),
	)).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrQuit
		}
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return answer, nil
}

// Run interviews the user about topic until they answer DoneCommand, then
// returns the generated README.
func (c *Chat) Run(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	questions, err := c.docs.StartConversation(ctx, topic)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	var history []templates.Turn
	for {
		c.show(questions)
		answer, err := c.ask("Your answer", fmt.Sprintf("Type %s on its own to write the README.", DoneCommand))
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(answer)
		if answer == DoneCommand {
			break
		}
		if answer == "" {
			continue
		}
		history = append(history, templates.Turn{Questions: questions, UserResponse: answer})

		questions, err = c.docs.FollowUp(ctx, topic, questions, answer)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
	}

	fmt.Fprintln(c.out, subtleStyle.Render("Writing README..."))
	markdown, err := c.docs.ConversationReadme(ctx, topic, history)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	c.show(markdown)

	if c.outputPath != "" {
		if err := os.WriteFile(c.outputPath, []byte(markdown), 0644); err != nil {
			return markdown, fmt.Errorf("failed to write %s: %w", c.outputPath, err)
		}
		fmt.Fprintln(c.out, successStyle.Render("Wrote "+c.outputPath))
	}
	return markdown, nil
}

func (c *Chat) show(markdown string) {
	if rendered, err := RenderMarkdown(markdown, c.width); err == nil && rendered != "" {
		fmt.Fprintln(c.out, rendered)
		return
	}
	fmt.Fprintln(c.out, markdown)
}
