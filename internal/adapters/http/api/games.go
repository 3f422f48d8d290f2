package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
)

type submitResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	GameID string `json:"game_id,omitempty"`
}

// handleSubmitGame handles POST /api/v1/games.
func (s *Server) handleSubmitGame(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_game"

	var raw model.RawGame
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(raw.Events) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("game has no events")))
		return
	}

	runID, err := s.deps.Submit(r.Context(), raw)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrMissingGameID):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	default:
		s.logger.Error(r.Context(), "game submission failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{Status: "accepted", RunID: runID, GameID: service.Identity(raw)})
}

// handleGetGame handles GET /api/v1/games/{gameID}.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_game"
	rec, err := s.deps.Game(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		s.writeViewError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGamePossessions handles GET /api/v1/games/{gameID}/possessions.
func (s *Server) handleGamePossessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.game_possessions"
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	f.GameID = chi.URLParam(r, "gameID")

	ps, err := s.deps.Possessions(r.Context(), f)
	if err != nil {
		s.writeViewError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ps))
}

// handlePossessions handles GET /api/v1/possessions.
func (s *Server) handlePossessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.possessions"
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
		return
	}
	ps, err := s.deps.Possessions(r.Context(), f)
	if err != nil {
		s.writeViewError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ps))
}

// orEmpty keeps empty results encoded as [] instead of null.
func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
