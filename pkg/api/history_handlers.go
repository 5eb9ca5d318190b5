package api

import (
	"errors"
	"net/http"
	"strconv"

	"docassist/pkg/persistence"
)

const defaultHistoryLimit = 50

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := persistence.GenerationFilter{
		Source: persistence.Source(query.Get("source")),
		Status: query.Get("status"),
		Limit:  defaultHistoryLimit,
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	gens, err := s.history.ListGenerations(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list generations: %v", err)
		s.writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}
	if gens == nil {
		gens = []*persistence.Generation{}
	}
	s.writeJSON(w, http.StatusOK, gens)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	gen, err := s.history.GetGeneration(r.Context(), id)
	if errors.Is(err, persistence.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Generation not found", id)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load generation %s: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, gen)
}

func (s *Server) handleGenerationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.GetGenerationStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to aggregate generations: %v", err)
		s.writeError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
