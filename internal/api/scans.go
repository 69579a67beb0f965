package api

import "net/http"

// handleLastScanResult handles GET /api/last-scan-result.
// The pending result is consumed; with none pending the body is null.
func (s *Server) handleLastScanResult(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	result, ok := s.scans.Last(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
