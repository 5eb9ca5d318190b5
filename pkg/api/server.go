// Package api serves the documentation generator over HTTP: the stateless
// generation endpoints, server-side form sessions, generation history and a
// server-rendered wizard page.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"docassist/pkg/form"
	"docassist/pkg/logx"
	"docassist/pkg/persistence"
	"docassist/pkg/sections"
	"docassist/pkg/submission"
	"docassist/pkg/templates"
	"docassist/pkg/version"
)

//go:embed web/templates/*.html
var templateFS embed.FS

// RootMessage is the plain-text body of GET /.
const RootMessage = "Documentation Assistant API is running!"

const maxLogEntries = 1000

// Documenter generates READMEs from form records and conversations.
type Documenter interface {
	submission.Generator
	StartConversation(ctx context.Context, topic string) (string, error)
	FollowUp(ctx context.Context, topic, previousQuestions, userResponse string) (string, error)
	ConversationReadme(ctx context.Context, topic string, history []templates.Turn) (string, error)
}

// History reads past generations.
type History interface {
	ListGenerations(ctx context.Context, filter persistence.GenerationFilter) ([]*persistence.Generation, error)
	GetGeneration(ctx context.Context, id string) (*persistence.Generation, error)
	GetGenerationStats(ctx context.Context) (*persistence.GenerationStats, error)
}

// Server is the documentation HTTP server.
type Server struct {
	docs      Documenter
	sessions  *form.Sessions
	blobs     submission.BlobStore
	history   History
	metrics   http.Handler
	defaults  sections.Config
	logger    *logx.Logger
	templates *template.Template
	stopped   chan struct{}

	// examples pins one placeholder example per session.
	examples sync.Map
}

// Option configures a Server.
type Option func(*Server)

// WithSessions enables the /api/forms endpoints and the wizard page.
func WithSessions(s *form.Sessions) Option {
	return func(srv *Server) { srv.sessions = s }
}

// WithBlobs enables /downloads/{blobID}.
func WithBlobs(b submission.BlobStore) Option {
	return func(srv *Server) { srv.blobs = b }
}

// WithHistory enables /api/generations.
func WithHistory(h History) Option {
	return func(srv *Server) { srv.history = h }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(srv *Server) { srv.metrics = h }
}

// WithDefaults sets the sections used for new sessions that do not name any.
func WithDefaults(cfg sections.Config) Option {
	return func(srv *Server) { srv.defaults = cfg.Normalize() }
}

// NewServer creates a server backed by docs.
func NewServer(docs Documenter, opts ...Option) *Server {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "web/templates/*.html")
	if err != nil {
		// Templates are embedded at compile time.
		panic(fmt.Sprintf("Failed to parse embedded templates: %v", err))
	}

	s := &Server{
		docs:      docs,
		defaults:  sections.Default(),
		logger:    logx.NewLogger("api"),
		templates: tmpl,
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions != nil {
		s.sessions.OnRemove(func(id string) { s.examples.Delete(id) })
	}
	return s
}

// RegisterRoutes installs every endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/healthz", s.handleHealth)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mux.HandleFunc("POST /generate-documentation", s.handleGenerateDocumentation)
	mux.HandleFunc("POST /generate", s.handleConversationStart)
	mux.HandleFunc("POST /generate/follow-up", s.handleConversationFollowUp)
	mux.HandleFunc("POST /generate/download-readme", s.handleConversationReadme)
	mux.HandleFunc("GET /api/placeholders", s.handlePlaceholders)

	if s.sessions != nil {
		mux.HandleFunc("POST /api/forms", s.handleCreateForm)
		mux.HandleFunc("GET /api/forms/{id}", s.handleGetForm)
		mux.HandleFunc("DELETE /api/forms/{id}", s.handleDeleteForm)
		mux.HandleFunc("PUT /api/forms/{id}/config", s.handleFormConfig)
		mux.HandleFunc("PATCH /api/forms/{id}/fields", s.handleFormFields)
		mux.HandleFunc("POST /api/forms/{id}/next", s.handleFormNext)
		mux.HandleFunc("POST /api/forms/{id}/previous", s.handleFormPrevious)
		mux.HandleFunc("DELETE /api/forms/{id}/error", s.handleFormDismissError)

		mux.HandleFunc("GET /wizard", s.handleWizard)
		mux.HandleFunc("POST /wizard/{id}", s.handleWizardPost)
	}
	if s.blobs != nil {
		mux.HandleFunc("GET /downloads/{blobID}", s.handleDownload)
	}
	if s.history != nil {
		mux.HandleFunc("GET /api/generations", s.handleListGenerations)
		mux.HandleFunc("GET /api/generations/stats", s.handleGenerationStats)
		mux.HandleFunc("GET /api/generations/{id}", s.handleGetGeneration)
	}
}

// Handler returns the full handler chain with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return withCORS(mux)
}

// withCORS allows any origin, as the browser form is served separately.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, RootMessage)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleLogs serves the in-memory log buffer, filtered by component and
// an RFC3339 lower bound.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	component := query.Get("component")

	var since time.Time
	if sinceStr := query.Get("since"); sinceStr != "" {
		var err error
		since, err = time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.logger.Warn("Invalid since parameter: %s", sinceStr)
			http.Error(w, "Invalid since parameter (use RFC3339)", http.StatusBadRequest)
			return
		}
	}

	logs := logx.GetRecentLogEntries(component, since)
	if len(logs) > maxLogEntries {
		logs = logs[len(logs)-maxLogEntries:]
	}
	if logs == nil {
		logs = []logx.LogEntry{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, details string) {
	s.writeJSON(w, status, submission.ErrorBody{Error: msg, Details: details})
}

func writeMarkdown(w http.ResponseWriter, filename, markdown string) {
	w.Header().Set("Content-Type", "text/markdown")
	w.Header().Set("Content-Disposition", submission.Disposition(filename))
	_, _ = w.Write([]byte(markdown))
}

// Done is closed once a server started by StartServer has shut down.
func (s *Server) Done() <-chan struct{} {
	return s.stopped
}

// StartServer listens on addr until ctx is cancelled, then shuts down
// gracefully. It does not block.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting documentation API on %s", addr)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error: %v", err)
		}
	}()

	go func() {
		defer close(s.stopped)
		<-ctx.Done()
		s.logger.Info("Shutting down documentation API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // parent context is already cancelled
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed: %v", err)
		}
	}()

	return nil
}
