package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"docassist/pkg/form"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
)

// formView is the JSON shape of a form session.
type formView struct {
	ID          string                    `json:"id"`
	Config      sections.Config           `json:"config"`
	Steps       []steps.Definition        `json:"steps"`
	Current     int                       `json:"current"`
	Total       int                       `json:"total"`
	IsLast      bool                      `json:"isLast"`
	Values      form.Record               `json:"values"`
	Errors      map[sections.Field]string `json:"errors,omitempty"`
	Loading     bool                      `json:"loading"`
	SubmitError *submitErrorView          `json:"submitError,omitempty"`
	Document    *documentView             `json:"document,omitempty"`
	Transition  string                    `json:"transition,omitempty"`
}

type submitErrorView struct {
	Category submission.Category `json:"category"`
	Message  string              `json:"message"`
}

type documentView struct {
	Filename    string    `json:"filename"`
	DownloadURL string    `json:"downloadUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	Markdown    string    `json:"markdown"`
}

type sectionsBody struct {
	Sections json.RawMessage `json:"sections"`
}

func downloadURL(blobID string) string {
	return "/downloads/" + blobID
}

func viewOf(id string, c *form.Controller) formView {
	v := formView{
		ID:      id,
		Config:  c.Config(),
		Steps:   c.Steps().Steps(),
		Current: c.Current(),
		Total:   c.Total(),
		IsLast:  c.IsLast(),
		Values:  c.Record(),
		Loading: c.Loading(),
	}
	if errs := c.Errors(); errs != nil {
		v.Errors = errs.Messages()
	}
	if err := c.SubmitError(); err != nil {
		v.SubmitError = submitErrorOf(err)
	}
	if doc := c.Document(); doc != nil {
		v.Document = &documentView{
			Filename:    doc.Filename,
			DownloadURL: downloadURL(doc.BlobID),
			CreatedAt:   doc.CreatedAt,
			Markdown:    doc.Markdown,
		}
	}
	return v
}

// submitErrorOf shows only the category's fixed message; the raw error has
// already been logged.
func submitErrorOf(err error) *submitErrorView {
	category := submission.CategoryUnknown
	var subErr *submission.Error
	if errors.As(err, &subErr) {
		category = subErr.Category
	}
	return &submitErrorView{Category: category, Message: category.UserMessage()}
}

// transitionStatus is the HTTP status reported for a Next outcome.
func transitionStatus(t form.Transition) int {
	switch t {
	case form.Blocked:
		return http.StatusUnprocessableEntity
	case form.Busy:
		return http.StatusConflict
	case form.Failed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *form.Controller, bool) {
	id := r.PathValue("id")
	c, ok := s.sessions.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Form session not found", id)
		return id, nil, false
	}
	return id, c, true
}

func (s *Server) save(r *http.Request, id string) {
	if err := s.sessions.Save(r.Context(), id); err != nil {
		s.logger.Warn("Failed to persist form session %s: %v", id, err)
	}
}

// readSections decodes an optional {"sections": {...}} body. An empty body
// yields fallback.
func (s *Server) readSections(w http.ResponseWriter, r *http.Request, fallback sections.Config) (sections.Config, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidBody, err.Error())
		return fallback, false
	}
	if len(data) == 0 {
		return fallback, true
	}
	var body sectionsBody
	if err := json.Unmarshal(data, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidBody, err.Error())
		return fallback, false
	}
	if len(body.Sections) == 0 {
		return fallback, true
	}
	cfg, err := sections.Parse(body.Sections)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidBody, err.Error())
		return fallback, false
	}
	return cfg, true
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.readSections(w, r, s.defaults)
	if !ok {
		return
	}
	id, c, err := s.sessions.Create(r.Context(), cfg)
	if err != nil {
		s.logger.Warn("Form session %s created but not persisted: %v", id, err)
	}
	s.logger.Info("Created form session %s with %d steps", id, c.Total())
	s.writeJSON(w, http.StatusCreated, viewOf(id, c))
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(id, c))
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.logger.Warn("Failed to delete stored form session %s: %v", id, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFormConfig(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	cfg, ok := s.readSections(w, r, c.Config())
	if !ok {
		return
	}
	c.SetConfiguration(cfg)
	s.save(r, id)
	s.writeJSON(w, http.StatusOK, viewOf(id, c))
}

func (s *Server) handleFormFields(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	var values map[string]string
	if !s.decode(w, r, &values) {
		return
	}
	for name := range values {
		if !sections.Field(name).Valid() {
			s.writeError(w, http.StatusBadRequest, errInvalidBody, "unknown field "+name)
			return
		}
	}
	for name, value := range values {
		if err := c.Set(sections.Field(name), value); err != nil {
			s.writeError(w, http.StatusBadRequest, errInvalidBody, err.Error())
			return
		}
	}
	s.save(r, id)
	s.writeJSON(w, http.StatusOK, viewOf(id, c))
}

func (s *Server) handleFormNext(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	t, err := c.Next(r.Context())
	if err != nil && t == form.Failed {
		s.logger.Warn("Form session %s submission failed: %v", id, err)
	}
	s.save(r, id)

	view := viewOf(id, c)
	view.Transition = t.String()
	if t == form.Failed && view.SubmitError == nil && err != nil {
		view.SubmitError = submitErrorOf(err)
	}
	s.writeJSON(w, transitionStatus(t), view)
}

func (s *Server) handleFormPrevious(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	c.Previous()
	s.save(r, id)
	s.writeJSON(w, http.StatusOK, viewOf(id, c))
}

func (s *Server) handleFormDismissError(w http.ResponseWriter, r *http.Request) {
	id, c, ok := s.session(w, r)
	if !ok {
		return
	}
	c.DismissError()
	s.writeJSON(w, http.StatusOK, viewOf(id, c))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	blob, err := s.blobs.Get(r.PathValue("blobID"))
	if err != nil {
		if errors.Is(err, submission.ErrBlobNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to read blob: %v", err)
		http.Error(w, errInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", submission.Disposition(blob.Filename))
	_, _ = w.Write(blob.Content)
}
