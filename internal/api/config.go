package api

import (
	"net/http"

	"github.com/graaaaa/roomcheck/internal/app"
)

// handleGetConfig handles GET /api/config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.GetConfig(r.Context()))
}

// handlePutConfig handles PUT /api/config.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req app.ConfigUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := s.cfg.UpdateConfig(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
