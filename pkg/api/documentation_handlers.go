package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"docassist/pkg/form"
	"docassist/pkg/generator"
	"docassist/pkg/llm/llmerrors"
	"docassist/pkg/placeholders"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
	"docassist/pkg/templates"
)

const (
	errInvalidBody = "Invalid request body"
	errOpenAI      = "OpenAI API error"
	errProvider    = "LLM provider error"
	errInternal    = "Internal server error"
)

// maxBodyBytes caps request bodies; the largest legal record is well below it.
const maxBodyBytes = 1 << 20

// conversationResponse is the body of /generate and /generate/follow-up.
type conversationResponse struct {
	Questions string `json:"questions"`
	Topic     string `json:"topic"`
}

type followUpRequest struct {
	Topic             string `json:"topic"`
	PreviousQuestions string `json:"previousQuestions"`
	UserResponse      string `json:"userResponse"`
}

type conversationReadmeRequest struct {
	Topic               string           `json:"topic"`
	ConversationHistory []templates.Turn `json:"conversationHistory"`
}

// generationError maps a generator failure to a status and error body.
func generationError(err error) (int, submission.ErrorBody) {
	body := submission.ErrorBody{Details: err.Error()}
	switch {
	case errors.Is(err, generator.ErrEmptyTopic), errors.Is(err, generator.ErrPromptTooLarge):
		body.Error = errInvalidBody
		return http.StatusBadRequest, body
	case llmerrors.ProviderOf(err) == llmerrors.ProviderOpenAI:
		body.Error = errOpenAI
	case errors.As(err, new(*llmerrors.Error)):
		body.Error = errProvider
	default:
		body.Error = errInternal
	}
	return http.StatusInternalServerError, body
}

// InProcess adapts gen for a form submission adapter in the same process.
// Failures are reported as the status errors the HTTP endpoint would have
// returned, so they classify the same way as remote submissions.
func InProcess(gen submission.Generator) submission.Generator {
	return submission.GeneratorFunc(func(ctx context.Context, req submission.Request) (*submission.Response, error) {
		resp, err := gen.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		status, body := generationError(err)
		return nil, &submission.StatusError{StatusCode: status, Body: body}
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("Rejected request body for %s: %v", r.URL.Path, err)
		s.writeError(w, http.StatusBadRequest, errInvalidBody, err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := generationError(err)
	s.logger.Error("API error on %s: %v", r.URL.Path, err)
	s.writeJSON(w, status, body)
}

// validatedFields lists the fields a direct request must satisfy. With an
// explicit configuration every enabled field is checked; otherwise the
// identity fields plus whichever optional fields were sent.
func validatedFields(req submission.Request) []sections.Field {
	if req.Sections != nil {
		return steps.Resolve(*req.Sections).AllFields()
	}
	out := []sections.Field{sections.FieldProjectName, sections.FieldDescription}
	for _, f := range sections.AllFields {
		if f == sections.FieldProjectName || f == sections.FieldDescription {
			continue
		}
		if _, ok := req.Fields[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (s *Server) handleGenerateDocumentation(w http.ResponseWriter, r *http.Request) {
	var req submission.Request
	if !s.decode(w, r, &req) {
		return
	}
	if req.Sections != nil {
		req.Fields = submission.Filter(req.Fields, *req.Sections)
	}

	if errs := form.BuildValidator(validatedFields(req)).Validate(req.Fields); errs != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidBody, errs.Error())
		return
	}

	resp, err := s.docs.Generate(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	filename := resp.Filename
	if filename == "" {
		filename = submission.DefaultFilename
	}
	writeMarkdown(w, filename, resp.Markdown)
}

func (s *Server) handleConversationStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	questions, err := s.docs.StartConversation(r.Context(), req.Topic)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationResponse{Questions: questions, Topic: req.Topic})
}

func (s *Server) handleConversationFollowUp(w http.ResponseWriter, r *http.Request) {
	var req followUpRequest
	if !s.decode(w, r, &req) {
		return
	}
	questions, err := s.docs.FollowUp(r.Context(), req.Topic, req.PreviousQuestions, req.UserResponse)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversationResponse{Questions: questions, Topic: req.Topic})
}

func (s *Server) handleConversationReadme(w http.ResponseWriter, r *http.Request) {
	var req conversationReadmeRequest
	if !s.decode(w, r, &req) {
		return
	}
	markdown, err := s.docs.ConversationReadme(r.Context(), req.Topic, req.ConversationHistory)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeMarkdown(w, submission.DefaultFilename, markdown)
}

func (s *Server) handlePlaceholders(w http.ResponseWriter, _ *http.Request) {
	example, err := placeholders.Random()
	if err != nil {
		s.logger.Error("Failed to load placeholders: %v", err)
		s.writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, example)
}
