package api

import (
	"html/template"
	"net/http"
	"net/url"

	"docassist/pkg/form"
	"docassist/pkg/placeholders"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
)

//nolint:gochecknoglobals // template helpers
var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Wizard form actions.
const (
	actionNext     = "next"
	actionPrevious = "previous"
	actionConfig   = "config"
	actionDismiss  = "dismiss"
	actionReset    = "reset"
)

type wizardField struct {
	Name        string
	Label       string
	Value       string
	Placeholder string
	Error       string
}

type wizardToggle struct {
	Name  string
	Label string
	On    bool
}

type wizardPage struct {
	View    formView
	Step    steps.Definition
	Review  bool
	Fields  []wizardField
	Summary []wizardField
	Toggles []wizardToggle
}

// exampleFor returns the placeholder example pinned to session id.
func (s *Server) exampleFor(id string) placeholders.Example {
	if v, ok := s.examples.Load(id); ok {
		return v.(placeholders.Example) //nolint:forcetypeassert // only Examples are stored
	}
	ex, err := placeholders.Random()
	if err != nil {
		return placeholders.Example{}
	}
	actual, _ := s.examples.LoadOrStore(id, ex)
	return actual.(placeholders.Example) //nolint:forcetypeassert // only Examples are stored
}

func fieldLabel(f sections.Field) string {
	if c, ok := form.ConstraintFor(f); ok {
		return c.Label
	}
	return string(f)
}

// gatingToggles lists the sections that switch a step on or off.
func gatingToggles(cfg sections.Config) []wizardToggle {
	var out []wizardToggle
	for _, def := range steps.Catalog() {
		if def.Section.IsIdentity() {
			continue
		}
		out = append(out, wizardToggle{
			Name:  string(def.Section),
			Label: def.Title + " (" + def.Description + ")",
			On:    cfg.Enabled(def.Section),
		})
	}
	return out
}

func buildWizardPage(id string, c *form.Controller, example placeholders.Example) wizardPage {
	view := viewOf(id, c)
	page := wizardPage{View: view, Step: c.Step(), Toggles: gatingToggles(view.Config)}

	if page.Step.Kind == steps.KindReview {
		page.Review = true
		for _, f := range c.Steps().AllFields() {
			page.Summary = append(page.Summary, wizardField{
				Name:  string(f),
				Label: fieldLabel(f),
				Value: view.Values[f],
			})
		}
		return page
	}
	for _, f := range page.Step.Fields {
		page.Fields = append(page.Fields, wizardField{
			Name:        string(f),
			Label:       fieldLabel(f),
			Value:       view.Values[f],
			Placeholder: example.For(f),
			Error:       view.Errors[f],
		})
	}
	return page
}

// handleWizard renders the session named by ?id=, creating one when absent
// or unknown.
func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	c, ok := s.sessions.Get(id)
	if !ok {
		var err error
		id, c, err = s.sessions.Create(r.Context(), s.defaults)
		if err != nil {
			s.logger.Warn("Wizard session %s not persisted: %v", id, err)
		}
		http.Redirect(w, r, wizardURL(id), http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "wizard.html", buildWizardPage(id, c, s.exampleFor(id))); err != nil {
		s.logger.Error("Failed to render wizard: %v", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func wizardURL(id string) string {
	return "/wizard?id=" + url.QueryEscape(id)
}

// handleWizardPost applies one plain form post and redirects back to the page.
func (s *Server) handleWizardPost(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	switch r.PostForm.Get("action") {
	case actionConfig:
		cfg := sections.Basics()
		for _, t := range gatingToggles(cfg) {
			cfg = cfg.With(sections.Section(t.Name), r.PostForm.Get(t.Name) == "on")
		}
		// Companion sections follow the step that carries them.
		cfg = cfg.With(sections.EnvironmentalSetup, cfg.Prerequisites)
		cfg = cfg.With(sections.DeploymentInfo, cfg.LocalDevServer)
		c.SetConfiguration(cfg)
		s.examples.Delete(id)
	case actionReset:
		c.Reset()
		s.examples.Delete(id)
	case actionDismiss:
		c.DismissError()
	case actionPrevious:
		applyWizardFields(r, c)
		c.Previous()
	case actionNext:
		applyWizardFields(r, c)
		if t, err := c.Next(r.Context()); t == form.Failed {
			s.logger.Warn("Wizard session %s submission failed: %v", id, err)
		}
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	s.save(r, id)
	http.Redirect(w, r, wizardURL(id), http.StatusSeeOther)
}

func applyWizardFields(r *http.Request, c *form.Controller) {
	for _, f := range c.Step().Fields {
		if vals, ok := r.PostForm[string(f)]; ok && len(vals) > 0 {
			_ = c.Set(f, vals[0])
		}
	}
}
