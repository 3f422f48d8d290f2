package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleLineupRatings handles GET /api/v1/lineups/ratings.
func (s *Server) handleLineupRatings(w http.ResponseWriter, r *http.Request) {
	const op = "api.lineup_ratings"
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	ratings, err := s.deps.LineupRatings(r.Context(), f)
	if err != nil {
		s.writeViewError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ratings))
}

// handlePlayerOnOff handles GET /api/v1/players/{playerID}/onoff.
func (s *Server) handlePlayerOnOff(w http.ResponseWriter, r *http.Request) {
	const op = "api.player_onoff"
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	f.PlayerID = chi.URLParam(r, "playerID")

	rows, err := s.deps.PlayerOnOff(r.Context(), f)
	if err != nil {
		s.writeViewError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rows))
}

// handleValidation handles GET /api/v1/validation.
func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	const op = "api.validation"
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	rows, err := s.deps.ValidationResults(r.Context(), f)
	if err != nil {
		s.writeViewError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(rows))
}
