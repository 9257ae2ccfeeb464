package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListZones returns every evaluated zone.
func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	zones := s.board.Zones()
	writeJSON(w, http.StatusOK, map[string]any{
		"zones": zones,
		"count": len(zones),
	})
}

// handleGetZone returns one zone by location.
func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	zone, ok := s.board.Zone(location)
	if !ok {
		writeNotFound(w, "zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}
