package api

import (
	"net/http"
	"strconv"

	"github.com/graaaaa/roomcheck/internal/app"
	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/store"
)

// handleRegisterGuest handles POST /api/guests.
func (s *Server) handleRegisterGuest(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterGuestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	g, err := s.guests.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// handleScan handles POST /api/guests/scan.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req app.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp, err := s.guests.Scan(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRoomGuestsByCode handles GET /api/rooms/code/{code}/guests.
func (s *Server) handleRoomGuestsByCode(w http.ResponseWriter, r *http.Request) {
	guests, err := s.guests.ListByRoomCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guests)
}

// handleListGuests handles GET /api/guests.
func (s *Server) handleListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := s.guests.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guests)
}

// eventResponse acknowledges an explicit time-in or time-out.
type eventResponse struct {
	Message string       `json:"message"`
	Event   domain.Event `json:"event"`
}

// handleTimeIn handles PUT /api/guests/{id}/timein.
func (s *Server) handleTimeIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	e, err := s.guests.TimeIn(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Message: app.MsgTimeInRecorded, Event: e})
}

// handleTimeOut handles PUT /api/guests/{id}/timeout.
func (s *Server) handleTimeOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	e, err := s.guests.TimeOut(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Message: app.MsgTimeOutRecorded, Event: e})
}

// handleGuestState handles GET /api/guests/{id}/state.
func (s *Server) handleGuestState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	st, err := s.guests.State(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGuestEvents handles GET /api/guests/{id}/events.
func (s *Server) handleGuestEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var f store.EventFilter
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		f.Limit = limit
	}
	if v := q.Get("cursor"); v != "" {
		f.Cursor = &v
	}

	page, err := s.guests.Events(r.Context(), id, f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleDeleteGuest handles DELETE /api/guests/{id}.
func (s *Server) handleDeleteGuest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.guests.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Guest deleted successfully")
}
