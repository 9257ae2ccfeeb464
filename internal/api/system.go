package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-heating/internal/heartbeat"
	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/modbus"
)

// StatusResponse is the controller overview.
type StatusResponse struct {
	Version      string                  `json:"version"`
	Supply       *heating.SupplySnapshot `json:"supply"`
	Zones        []heating.ZoneSnapshot  `json:"zones"`
	RecentEvents []heating.SupplyEvent   `json:"recent_events"`
	KeepAlive    *modbus.Status          `json:"keepalive,omitempty"`
}

// handleHealth returns the health document. Without a reporter the server
// only vouches for itself.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  heartbeat.StatusHealthy,
			"version": s.version,
		})
		return
	}

	h := s.health.Evaluate(r.Context())
	status := http.StatusOK
	if h.Status == heartbeat.StatusDegraded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

// handleStatus returns supply, zones, recent decisions and keep-alive state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Version:      s.version,
		Zones:        s.board.Zones(),
		RecentEvents: s.board.RecentEvents(),
		KeepAlive:    s.board.KeepAliveStatus(),
	}
	if supply, ok := s.board.Supply(); ok {
		resp.Supply = &supply
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvaluate fires the force-evaluation event. Every zone recomputes
// on the loop; the response does not wait for it.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeUnavailable(w, "evaluation trigger unavailable")
		return
	}

	s.events.FireEvent(heating.ForceEvaluationEvent, map[string]any{"source": "api"})
	s.logger.Info("forced evaluation requested", "request_id", r.Context().Value(ctxKeyRequestID))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"event": heating.ForceEvaluationEvent,
	})
}
