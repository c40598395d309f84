// internal/httpserver/server.go
//
// HTTP server wiring for the kana backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/cards".
//   - Play endpoints (optional auth): /game/new, /game/{id}, /game/select, /game/advance.
//   - Auth endpoints: /auth/signup, /auth/login, /auth/logout, /auth/me.
//   - Gated history endpoints: POST /games, /games/mine, /stats/me, /dashboard/{id}.
//
// Notes:
//   - Guests are tracked by an anonymous cookie. A guest's finished game is
//     staged in that visitor's pending slot and submitted on signup/login.
//   - Optional auth decorates requests with user context when a valid token is present;
//     routes can still run for guests.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/config"
	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/history"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/store"
	"github.com/robalobadob/kana/apps/go-server/internal/submit"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Config    config.Server
	DB        *sqlx.DB // users table
	Catalog   *kana.Catalog
	Generator *game.Generator
	Sessions  store.Store
	History   *history.Store

	// PendingFor returns the pending slot for a pending slot name
	// (see pending.AnonSlot).
	PendingFor func(slot string) pending.Store
}

// Server bundles router and dependencies.
type Server struct {
	r          *chi.Mux
	cfg        config.Server
	db         *sqlx.DB
	cat        *kana.Catalog
	gen        *game.Generator
	sessions   store.Store
	history    *history.Store
	submitter  submit.Submitter
	pendingFor func(slot string) pending.Store
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:          chi.NewRouter(),
		cfg:        d.Config,
		db:         d.DB,
		cat:        d.Catalog,
		gen:        d.Generator,
		sessions:   d.Sessions,
		history:    d.History,
		submitter:  historySubmitter{h: d.History},
		pendingFor: d.PendingFor,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(s.cfg.ClientOrigin))        // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"kana-go","endpoints":["/health","/cards","POST /game/new","POST /game/select","POST /game/advance","/auth/*","POST /games","/games/mine","/stats/me"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	s.r.Get("/cards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.cat.All())
	})

	// Play: optional auth, guests can play
	s.mountPlay(s.r.With(s.withOptionalAuth()))

	// Auth + history (gated)
	s.mountAuthRoutes()
	s.mountHistory(s.r.With(s.requireAuth()))

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ------------------------------- helpers -----------------------------------

const maxBody = 1 << 20

// decode reads a JSON body into v, bounded to maxBody.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeGameError maps session errors to status + code.
func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, game.ErrInvalidSelection):
		writeError(w, http.StatusConflict, "invalid_selection")
	case errors.Is(err, game.ErrPrematureAdvance):
		writeError(w, http.StatusBadRequest, "premature_advance")
	case errors.Is(err, game.ErrDegenerateConfiguration):
		writeError(w, http.StatusBadRequest, "degenerate_configuration")
	case errors.Is(err, game.ErrNotStarted):
		writeError(w, http.StatusConflict, "not_started")
	case errors.Is(err, game.ErrGameFinished):
		writeError(w, http.StatusConflict, "game_finished")
	default:
		log.Error().Err(err).Msg("game request")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

// historySubmitter stores games directly through the history store.
type historySubmitter struct{ h *history.Store }

func (hs historySubmitter) Submit(ctx context.Context, id submit.Identity, g *game.Game) (*submit.Summary, error) {
	if id.OwnerID == "" {
		return nil, &submit.SubmissionError{Op: "submit", Err: submit.ErrMissingIdentity}
	}
	sg, err := hs.h.CreateGame(ctx, g, id.OwnerID)
	if err != nil {
		return nil, &submit.SubmissionError{Op: "submit", Err: err}
	}
	sum := summaryOf(sg)
	return &sum, nil
}

func summaryOf(sg *history.StoredGame) submit.Summary {
	return submit.Summary{
		GameID:    sg.ID,
		Accuracy:  sg.Accuracy,
		Rounds:    len(sg.Rounds),
		Correct:   sg.Correct(),
		CreatedAt: sg.CreatedAt,
	}
}
