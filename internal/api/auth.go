package api

import (
	"errors"
	"net/http"

	"github.com/graaaaa/roomcheck/internal/app"
	"github.com/graaaaa/roomcheck/internal/auth"
)

// handleLogin handles POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req app.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	ip := extractIP(r)
	resp, err := s.auth.Login(r.Context(), req)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		if s.loginLimiter.RecordFailure(ip) < 0 {
			loggerFrom(r).Warn("login locked out", "ip", ip)
		}
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.loginLimiter.RecordSuccess(ip)
	writeJSON(w, http.StatusOK, resp)
}

// validateResponse is the body of GET /api/auth/validate.
type validateResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username"`
}

// handleValidate handles GET /api/auth/validate. The auth middleware has
// already rejected bad tokens.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, Username: claims.Username})
}
