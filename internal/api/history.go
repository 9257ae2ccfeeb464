package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-heating/internal/heating"
	"github.com/nerrad567/gray-logic-heating/internal/history"
)

// maxQueryParamLen bounds free-text query parameters.
const maxQueryParamLen = 128

// handleListEvents returns recorded supply decisions.
// Query: kind, since (RFC 3339), limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history unavailable")
		return
	}

	filter, err := parseHistoryFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	page, err := s.history.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing supply events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetEvent returns a single supply decision.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history unavailable")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid event ID")
		return
	}

	ev, err := s.history.GetEvent(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeNotFound(w, "event not found")
		return
	}
	if err != nil {
		writeInternalError(w, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleListClaims returns zone claim transitions.
// Query: location, since (RFC 3339), limit, offset.
func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history unavailable")
		return
	}

	filter, err := parseHistoryFilter(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	page, err := s.history.ListClaims(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing claim changes failed", "error", err)
		writeInternalError(w, "failed to list claims")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// parseHistoryFilter validates the shared history query parameters.
// Limits above the repository maximum are clamped there.
func parseHistoryFilter(q url.Values) (history.Filter, error) {
	var f history.Filter

	f.Kind = heating.EventKind(q.Get("kind"))
	f.Location = q.Get("location")
	if len(f.Kind) > maxQueryParamLen || len(f.Location) > maxQueryParamLen {
		return f, fmt.Errorf("query parameter too long")
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid since timestamp")
		}
		f.Since = since
	}

	var err error
	if f.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseNonNegative(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseNonNegative(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
