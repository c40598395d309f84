package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/history"
)

// mountHistory registers the gated history routes.
func (s *Server) mountHistory(r chi.Router) {
	r.Post("/games", s.handleCreateGame)
	r.Get("/games/mine", s.handleMyGames)
	r.Get("/stats/me", s.handleMyStats)
	r.Get("/dashboard/{id}", s.handleDashboard)
}

// handleCreateGame stores a finished game submitted by a client.
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	var g game.Game
	if err := decode(w, r, &g); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sg, err := s.history.CreateGame(r.Context(), &g, me.ID)
	switch {
	case errors.Is(err, history.ErrInvalidGame):
		writeError(w, http.StatusBadRequest, "invalid_game")
		return
	case errors.Is(err, history.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
		return
	case err != nil:
		log.Error().Err(err).Str("user", me.ID).Msg("create game")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if sg.CardsCreated > 0 {
		log.Info().Str("gameId", sg.ID).Int("cardsCreated", sg.CardsCreated).Msg("game referenced unknown cards")
	}
	writeJSON(w, http.StatusCreated, summaryOf(sg))
}

// handleMyGames lists the caller's games, newest first.
func (s *Server) handleMyGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.history.ListGamesByOwner(r.Context(), userFrom(r.Context()).ID, 50)
	if err != nil {
		log.Error().Err(err).Msg("list games")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// handleMyStats returns the caller's dashboard.
func (s *Server) handleMyStats(w http.ResponseWriter, r *http.Request) {
	s.writeDashboard(w, r, userFrom(r.Context()).ID)
}

// handleDashboard returns the dashboard for {id}; only its owner may read it.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != userFrom(r.Context()).ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	s.writeDashboard(w, r, id)
}

func (s *Server) writeDashboard(w http.ResponseWriter, r *http.Request, ownerID string) {
	d, err := s.history.Dashboard(r.Context(), ownerID)
	if err != nil {
		log.Error().Err(err).Msg("dashboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
