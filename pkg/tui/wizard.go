// Package tui runs the documentation form and the conversational interview
// in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"docassist/pkg/form"
	"docassist/pkg/placeholders"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
)

// ErrQuit is returned when the user leaves the wizard without a document.
var ErrQuit = errors.New("wizard quit")

// Action is the navigation choice made at the bottom of each step.
type Action string

const (
	ActionNext        Action = "next"
	ActionPrevious    Action = "previous"
	ActionReconfigure Action = "reconfigure"
	ActionQuit        Action = "quit"
)

// FormRunner shows a huh form and blocks until it completes.
type FormRunner func(f *huh.Form) error

// Wizard walks a form controller step by step.
type Wizard struct {
	ctrl       *form.Controller
	out        io.Writer
	run        FormRunner
	example    placeholders.Example
	outputPath string
	width      int
}

// WizardOption configures a Wizard.
type WizardOption func(*Wizard)

// WithOutput sets where status lines and the preview are printed.
func WithOutput(w io.Writer) WizardOption {
	return func(wz *Wizard) { wz.out = w }
}

// WithFormRunner replaces the interactive huh runner.
func WithFormRunner(r FormRunner) WizardOption {
	return func(wz *Wizard) { wz.run = r }
}

// WithOutputPath sets the file the README is written to. Empty disables writing.
func WithOutputPath(path string) WizardOption {
	return func(wz *Wizard) { wz.outputPath = path }
}

// WithAccessible switches huh to line-based prompts.
func WithAccessible(on bool) WizardOption {
	return func(wz *Wizard) {
		prev := wz.run
		wz.run = func(f *huh.Form) error { return prev(f.WithAccessible(on)) }
	}
}

// NewWizard returns a wizard over ctrl.
func NewWizard(ctrl *form.Controller, opts ...WizardOption) *Wizard {
	wz := &Wizard{
		ctrl:       ctrl,
		out:        os.Stdout,
		run:        func(f *huh.Form) error { return f.Run() },
		outputPath: submission.DefaultFilename,
		width:      TerminalWidth(defaultMarkdownWidth),
	}
	for _, opt := range opts {
		opt(wz)
	}
	if ex, err := placeholders.Random(); err == nil {
		wz.example = ex
	}
	return wz
}

// Run configures sections, then loops over the resolved steps until a
// document is generated or the user quits.
func (wz *Wizard) Run(ctx context.Context) (*submission.Document, error) {
	if err := wz.Configure(); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck
		}
		values, action, err := wz.promptStep()
		if err != nil {
			return nil, err
		}
		doc, done, err := wz.Apply(ctx, action, values)
		if done || err != nil {
			return doc, err
		}
	}
}

// Configure asks which optional steps to include.
func (wz *Wizard) Configure() error {
	cfg := wz.ctrl.Config()
	var options []huh.Option[string]
	var selected []string
	for _, def := range steps.Catalog() {
		if def.Section.IsIdentity() {
			continue
		}
		options = append(options, huh.NewOption(def.Title+" - "+def.Description, string(def.Section)))
		if cfg.Enabled(def.Section) {
			selected = append(selected, string(def.Section))
		}
	}

	f := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Which sections should the README include?").
			Description("Project name and description are always included.").
			Options(options...).
			Value(&selected),
	))
	if err := wz.run(f); err != nil {
		return wz.formErr(err)
	}
	wz.ctrl.SetConfiguration(ConfigFromSelection(selected))
	return nil
}

// ConfigFromSelection builds a configuration from the chosen step sections.
// Companion sections follow the step that carries their field.
func ConfigFromSelection(selected []string) sections.Config {
	cfg := sections.Basics()
	for _, name := range selected {
		cfg = cfg.With(sections.Section(name), true)
	}
	cfg = cfg.With(sections.EnvironmentalSetup, cfg.Prerequisites)
	return cfg.With(sections.DeploymentInfo, cfg.LocalDevServer)
}

func (wz *Wizard) formErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrQuit
	}
	return fmt.Errorf("form failed: %w", err)
}

// stepInput holds the values bound to one step's huh fields.
type stepInput struct {
	values map[sections.Field]*string
	action Action
}

// BuildStepForm builds the huh form for the current step. Field errors from
// the last Next are shown as descriptions.
func (wz *Wizard) BuildStepForm() (*huh.Form, *stepInput) {
	step := wz.ctrl.Step()
	errs := wz.ctrl.Errors()
	in := &stepInput{values: make(map[sections.Field]*string), action: ActionNext}

	title := fmt.Sprintf("Step %d of %d: %s", wz.ctrl.Current(), wz.ctrl.Total(), step.Title)
	var fields []huh.Field

	if step.Kind == steps.KindReview {
		fields = append(fields, huh.NewNote().Title("Review").Description(wz.summary()))
	}
	for _, f := range step.Fields {
		value := wz.ctrl.Value(f)
		in.values[f] = &value
		label := string(f)
		if c, ok := form.ConstraintFor(f); ok {
			label = c.Label
		}
		text := huh.NewText().
			Title(label).
			Placeholder(wz.example.For(f)).
			Value(in.values[f])
		if fe, ok := errs[f]; ok {
			text = text.Description(errorStyle.Render(fe.Message))
		}
		fields = append(fields, text)
	}

	nextLabel := "Next"
	if wz.ctrl.IsLast() {
		nextLabel = "Generate README"
	}
	opts := []huh.Option[string]{huh.NewOption(nextLabel, string(ActionNext))}
	if wz.ctrl.Current() > 1 {
		opts = append(opts, huh.NewOption("Previous", string(ActionPrevious)))
	}
	opts = append(opts,
		huh.NewOption("Change sections", string(ActionReconfigure)),
		huh.NewOption("Quit", string(ActionQuit)),
	)
	fields = append(fields, huh.NewSelect[string]().
		Title("Continue").
		Options(opts...).
		Value((*string)(&in.action)))

	return huh.NewForm(huh.NewGroup(fields...).Title(title).Description(step.Description)), in
}

func (wz *Wizard) summary() string {
	var sb strings.Builder
	for _, f := range wz.ctrl.Steps().AllFields() {
		label := string(f)
		if c, ok := form.ConstraintFor(f); ok {
			label = c.Label
		}
		value := strings.TrimSpace(wz.ctrl.Value(f))
		if value == "" {
			value = "(not provided)"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, value)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (wz *Wizard) promptStep() (map[sections.Field]string, Action, error) {
	f, in := wz.BuildStepForm()
	if err := wz.run(f); err != nil {
		return nil, ActionQuit, wz.formErr(err)
	}
	values := make(map[sections.Field]string, len(in.values))
	for field, v := range in.values {
		values[field] = *v
	}
	return values, in.action, nil
}

// Apply stores values and performs action. done is true once the wizard
// should stop.
func (wz *Wizard) Apply(ctx context.Context, action Action, values map[sections.Field]string) (*submission.Document, bool, error) {
	for f, v := range values {
		if err := wz.ctrl.Set(f, v); err != nil {
			return nil, true, err //nolint:wrapcheck
		}
	}

	switch action {
	case ActionPrevious:
		wz.ctrl.Previous()
	case ActionReconfigure:
		if err := wz.Configure(); err != nil {
			return nil, true, err
		}
	case ActionQuit:
		return nil, true, ErrQuit
	default:
		return wz.next(ctx)
	}
	return nil, false, nil
}

func (wz *Wizard) next(ctx context.Context) (*submission.Document, bool, error) {
	fmt.Fprintln(wz.out, subtleStyle.Render("Working..."))
	t, err := wz.ctrl.Next(ctx)
	switch t {
	case form.Blocked:
		var errs form.Errors
		if errors.As(err, &errs) {
			for _, f := range sections.AllFields {
				if fe, ok := errs[f]; ok {
					fmt.Fprintln(wz.out, errorStyle.Render("  "+fe.Message))
				}
			}
		}
	case form.Failed:
		msg := submission.CategoryUnknown.UserMessage()
		var subErr *submission.Error
		if errors.As(err, &subErr) {
			msg = subErr.UserMessage()
		}
		fmt.Fprintln(wz.out, bannerStyle.Render(msg))
		wz.ctrl.DismissError()
	case form.Submitted:
		doc := wz.ctrl.Document()
		if err := wz.deliver(doc); err != nil {
			return doc, true, err
		}
		return doc, true, nil
	}
	return nil, false, nil
}

// deliver previews the document and writes it to the output path.
func (wz *Wizard) deliver(doc *submission.Document) error {
	if preview, err := RenderMarkdown(doc.Markdown, wz.width); err == nil {
		fmt.Fprintln(wz.out, preview)
	} else {
		fmt.Fprintln(wz.out, doc.Markdown)
	}
	if wz.outputPath == "" {
		return nil
	}
	if err := os.WriteFile(wz.outputPath, []byte(doc.Markdown), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", wz.outputPath, err)
	}
	fmt.Fprintln(wz.out, successStyle.Render("Wrote "+wz.outputPath))
	return nil
}
