// internal/httpserver/routes_play.go
//
// Server-side play. Exposes:
//   - POST /game/new      → start a session, returns its id and the first round
//   - GET  /game/{id}     → current state and round
//   - POST /game/select   → pick a candidate for the current round
//   - POST /game/advance  → score the round; after the last one the game is
//                           stored (users) or staged in the visitor's slot (guests)
//
// Sessions live in the in-memory store keyed by session id and owned by the
// user id or the anonymous cookie id. The answer of a round is never sent
// before that round is scored.

package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/play"
	"github.com/robalobadob/kana/apps/go-server/internal/store"
	"github.com/robalobadob/kana/apps/go-server/internal/submit"
)

// maxRoundLimit bounds client-requested game length.
const maxRoundLimit = 100

// mountPlay registers all /game routes.
func (s *Server) mountPlay(r chi.Router) {
	r.Route("/game", func(r chi.Router) {
		r.Post("/new", s.handleNewGame)
		r.Get("/{id}", s.handleGetGame)
		r.Post("/select", s.handleSelect)
		r.Post("/advance", s.handleAdvance)
	})
}

// owner returns the authenticated user id, or the anonymous cookie id for guests.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) string {
	if me := userFrom(r.Context()); me != nil {
		return me.ID
	}
	return s.ensureAnonID(w, r)
}

// updateSession runs fn on the caller's session. A game started as a guest
// stays reachable after signing in through the anonymous cookie.
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request, id string, fn func(*game.Session) error) error {
	err := s.sessions.Update(r.Context(), id, s.owner(w, r), fn)
	if errors.Is(err, store.ErrNotFound) && userFrom(r.Context()) != nil {
		if c, cerr := r.Cookie(anonCookieName); cerr == nil && c.Value != "" {
			err = s.sessions.Update(r.Context(), id, c.Value, fn)
		}
	}
	return err
}

// promptView is what the player is asked to find: the answer's sound and
// its romaji, never its id or glyphs.
type promptView struct {
	Audio  string `json:"audio"`
	Romaji string `json:"romaji"`
}

// roundView is a round as shown before it is scored.
type roundView struct {
	ID     string      `json:"id"`
	Prompt promptView  `json:"prompt"`
	Cards  []kana.Card `json:"cards"`
}

// scoredView reveals the answer of the round just scored.
type scoredView struct {
	Answer    kana.Card `json:"answer"`
	Selected  kana.Card `json:"selected"`
	IsCorrect bool      `json:"isCorrect"`
}

type gameRes struct {
	GameID  string        `json:"gameId"`
	State   game.State    `json:"state"`
	Round   *roundView    `json:"round,omitempty"`
	Scored  *scoredView   `json:"scored,omitempty"`
	Outcome *play.Outcome `json:"outcome,omitempty"`
}

// view fills State and (while in progress) Round. Caller holds the session.
func view(sess *game.Session) gameRes {
	res := gameRes{GameID: sess.ID(), State: sess.State()}
	if cur, err := sess.Current(); err == nil {
		res.Round = &roundView{
			ID:     cur.ID,
			Prompt: promptView{Audio: cur.Answer.Audio, Romaji: cur.Answer.Romaji},
			Cards:  cur.Cards,
		}
	}
	return res
}

type newGameReq struct {
	RoundLimit *int `json:"roundLimit,omitempty"` // nil means the server default
}

// handleNewGame creates and starts a session owned by the caller.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	limit := s.cfg.RoundLimit
	if req.RoundLimit != nil {
		limit = *req.RoundLimit
	}
	if limit <= 0 || limit > maxRoundLimit {
		writeError(w, http.StatusBadRequest, "degenerate_configuration")
		return
	}

	sess, err := game.NewSession(s.gen, limit)
	if err != nil {
		writeGameError(w, err)
		return
	}
	if _, err := sess.Start(); err != nil {
		writeGameError(w, err)
		return
	}
	if err := s.sessions.Save(r.Context(), s.owner(w, r), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusCreated, view(sess))
}

// handleGetGame returns the session's current view.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	var res gameRes
	err := s.updateSession(w, r, chi.URLParam(r, "id"), func(sess *game.Session) error {
		res = view(sess)
		return nil
	})
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type selectReq struct {
	GameID string `json:"gameId"`
	CardID string `json:"cardId"`
}

// handleSelect records the caller's pick for the current round.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := decode(w, r, &req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	var res gameRes
	err := s.updateSession(w, r, req.GameID, func(sess *game.Session) error {
		if _, err := sess.SelectCard(req.CardID); err != nil {
			return err
		}
		res = view(sess)
		return nil
	})
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type advanceReq struct {
	GameID string `json:"gameId"`
}

// handleAdvance scores the current round. Completing the last round hands
// the game to play.Finisher outside the session lock; a session can only
// finish once, so the hand-off runs once per game.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceReq
	if err := decode(w, r, &req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	var (
		res      gameRes
		finished *game.Game
	)
	err := s.updateSession(w, r, req.GameID, func(sess *game.Session) error {
		cur, err := sess.Current()
		if err != nil {
			return err
		}
		st, err := sess.Advance()
		if err != nil {
			return err
		}
		// cur was copied before scoring; Advance only fills IsCorrect
		res = view(sess)
		res.Scored = &scoredView{Answer: cur.Answer, Selected: *cur.Selected, IsCorrect: cur.Selected.ID == cur.Answer.ID}
		if st.Status == game.StatusFinished {
			finished, err = sess.Result()
		}
		return err
	})
	if err != nil {
		writeGameError(w, err)
		return
	}

	if finished != nil {
		out := s.finish(w, r, finished)
		res.Outcome = &out
	}
	writeJSON(w, http.StatusOK, res)
}

// finish stores the game for a signed-in user, or stages it for a guest.
// If storing fails the game is staged in the visitor's slot so it is
// submitted on the next sign-in instead of being lost.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, g *game.Game) play.Outcome {
	slot := s.pendingFor(pending.AnonSlot(s.ensureAnonID(w, r)))
	var id submit.Identity
	if me := userFrom(r.Context()); me != nil {
		id = submit.Identity{OwnerID: me.ID, Username: me.Username}
	}

	f := play.Finisher{Pending: slot, Submitter: s.submitter}
	out, err := f.Finish(r.Context(), id, g)
	if err == nil {
		return out
	}
	log.Warn().Err(err).Str("gameId", g.ID).Msg("store finished game; staging instead")
	if serr := slot.Save(r.Context(), g); serr != nil {
		log.Error().Err(serr).Str("gameId", g.ID).Msg("stage finished game")
		return play.Outcome{}
	}
	return play.Outcome{Staged: true}
}
