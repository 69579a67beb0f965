package api

import (
	"net/http"

	"github.com/graaaaa/roomcheck/internal/app"
)

// handleRoomSubresource serves GET /api/rooms/code/{code} and
// GET /api/rooms/{id}/stats.
func (s *Server) handleRoomSubresource(w http.ResponseWriter, r *http.Request) {
	ref, sub := r.PathValue("ref"), r.PathValue("sub")
	switch {
	case ref == "code":
		room, err := s.rooms.GetByCode(r.Context(), sub)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	case sub == "stats":
		id, err := pathID(r, "ref")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		stats, err := s.rooms.Stats(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

// handleListRooms handles GET /api/rooms.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// handleCreateRoom handles POST /api/rooms.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req app.CreateRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	room, err := s.rooms.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// handleGetRoom handles GET /api/rooms/{id}.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	room, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleDeleteRoom handles DELETE /api/rooms/{id}.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := s.rooms.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Room deleted successfully")
}

// handleTimeOutAll handles POST /api/rooms/{id}/timeout-all.
func (s *Server) handleTimeOutAll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	result, err := s.rooms.TimeOutAll(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if result.Written > 0 && s.hub != nil {
		s.hub.PublishRoomTimeout(id, result.Written)
	}
	writeJSON(w, http.StatusOK, result)
}
