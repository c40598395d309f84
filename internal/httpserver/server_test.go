package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/kana/apps/go-server/internal/config"
	"github.com/robalobadob/kana/apps/go-server/internal/database"
	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/history"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/store"
	"github.com/robalobadob/kana/apps/go-server/internal/submit"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "kana.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat, err := kana.Default()
	require.NoError(t, err)
	hist := history.NewStore(db)
	_, err = hist.SeedCards(context.Background(), cat.All())
	require.NoError(t, err)

	cfg := config.Server{
		JWTSecret:      "test-secret",
		JWTExpiresDays: 1,
		CookieName:     "kana_token",
		ClientOrigin:   "http://localhost:5173",
		RoundLimit:     3,
	}
	srv := New(Deps{
		Config:     cfg,
		DB:         db,
		Catalog:    cat,
		Generator:  game.NewGenerator(cat, rand.NewSource(42)),
		Sessions:   store.NewMemoryStore(),
		History:    hist,
		PendingFor: func(slot string) pending.Store { return pending.NewSQLStore(db, slot) },
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// browser keeps cookies between calls, like a web client.
type browser struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: base, hc: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

// call sends body as JSON (a []byte body is sent as is), decodes the
// response into out (if non-nil) and returns the status.
func (b *browser) call(method, path string, body, out any) int {
	b.t.Helper()
	var buf bytes.Buffer
	switch body := body.(type) {
	case nil:
	case []byte:
		buf.Write(body)
	default:
		require.NoError(b.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, b.base+path, &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := b.hc.Do(req)
	require.NoError(b.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(b.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

// playThrough plays a whole game picking the first candidate every round.
func (b *browser) playThrough() gameRes {
	b.t.Helper()
	var res gameRes
	require.Equal(b.t, http.StatusCreated, b.call(http.MethodPost, "/game/new", nil, &res))
	id := res.GameID
	for res.State.Status == game.StatusInProgress {
		require.NotNil(b.t, res.Round)
		require.Equal(b.t, http.StatusOK, b.call(http.MethodPost, "/game/select",
			selectReq{GameID: id, CardID: res.Round.Cards[0].ID}, nil))
		res = gameRes{}
		require.Equal(b.t, http.StatusOK, b.call(http.MethodPost, "/game/advance", advanceReq{GameID: id}, &res))
		require.NotNil(b.t, res.Scored)
	}
	return res
}

func intPtr(n int) *int { return &n }

type errorBody struct {
	Error string `json:"error"`
}

func TestPublicEndpoints(t *testing.T) {
	b := newBrowser(t, newTestServer(t).URL)

	var health map[string]bool
	assert.Equal(t, http.StatusOK, b.call(http.MethodGet, "/health", nil, &health))
	assert.True(t, health["ok"])

	var cards []kana.Card
	assert.Equal(t, http.StatusOK, b.call(http.MethodGet, "/cards", nil, &cards))
	assert.Len(t, cards, 46)

	var nf errorBody
	assert.Equal(t, http.StatusNotFound, b.call(http.MethodGet, "/nope", nil, &nf))
	assert.Equal(t, "not_found", nf.Error)
}

func TestPlayDoesNotLeakAnswer(t *testing.T) {
	b := newBrowser(t, newTestServer(t).URL)

	var raw map[string]any
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/game/new", nil, &raw))
	round, ok := raw["round"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, round, "answer")
	assert.Len(t, round["cards"], game.CandidatesPerRound)

	// the prompt names a candidate's sound without giving away its id
	var res gameRes
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/game/new", nil, &res))
	require.NotNil(t, res.Round)
	p := res.Round.Prompt
	require.NotEmpty(t, p.Audio)
	require.NotEmpty(t, p.Romaji)
	matches := 0
	for _, c := range res.Round.Cards {
		if c.Audio == p.Audio && c.Romaji == p.Romaji {
			matches++
		}
	}
	assert.Equal(t, 1, matches)
}

func TestPlayErrors(t *testing.T) {
	b := newBrowser(t, newTestServer(t).URL)

	var res gameRes
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/game/new", newGameReq{RoundLimit: intPtr(2)}, &res))
	assert.Equal(t, 2, res.State.RoundLimit)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, b.call(http.MethodPost, "/game/advance", advanceReq{GameID: res.GameID}, &e))
	assert.Equal(t, "premature_advance", e.Error)

	e = errorBody{}
	assert.Equal(t, http.StatusConflict, b.call(http.MethodPost, "/game/select", selectReq{GameID: res.GameID, CardID: "nope"}, &e))
	assert.Equal(t, "invalid_selection", e.Error)

	for _, limit := range []int{-1, 0, maxRoundLimit + 1} {
		e = errorBody{}
		assert.Equal(t, http.StatusBadRequest, b.call(http.MethodPost, "/game/new", newGameReq{RoundLimit: intPtr(limit)}, &e), "limit %d", limit)
		assert.Equal(t, "degenerate_configuration", e.Error)
	}

	e = errorBody{}
	assert.Equal(t, http.StatusBadRequest, b.call(http.MethodPost, "/game/new", []byte(`{"roundLimit":`), &e))
	assert.Equal(t, "bad_json", e.Error)

	// another visitor cannot touch the session
	other := newBrowser(t, b.base)
	e = errorBody{}
	assert.Equal(t, http.StatusNotFound, other.call(http.MethodGet, "/game/"+res.GameID, nil, &e))

	var cur gameRes
	assert.Equal(t, http.StatusOK, b.call(http.MethodGet, "/game/"+res.GameID, nil, &cur))
	assert.Equal(t, res.Round.ID, cur.Round.ID)
}

func TestGuestGameIsReconciledOnSignup(t *testing.T) {
	b := newBrowser(t, newTestServer(t).URL)

	final := b.playThrough()
	assert.Equal(t, game.StatusFinished, final.State.Status)
	require.NotNil(t, final.Outcome)
	assert.True(t, final.Outcome.Staged)

	// finished sessions refuse further input
	var e errorBody
	assert.Equal(t, http.StatusConflict, b.call(http.MethodPost, "/game/advance", advanceReq{GameID: final.GameID}, &e))
	assert.Equal(t, "game_finished", e.Error)

	var auth authRes
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/auth/signup",
		credentialsReq{Username: "alice", Password: "password1"}, &auth))
	require.NotNil(t, auth.Reconciled)
	assert.Equal(t, 3, auth.Reconciled.Rounds)
	assert.Equal(t, final.State.Accuracy, auth.Reconciled.Correct)

	var games []history.StoredGame
	require.Equal(t, http.StatusOK, b.call(http.MethodGet, "/games/mine", nil, &games))
	require.Len(t, games, 1)
	assert.Equal(t, auth.ID, games[0].OwnerID)

	// logging in again finds nothing staged
	auth = authRes{}
	require.Equal(t, http.StatusOK, b.call(http.MethodPost, "/auth/login",
		credentialsReq{Username: "alice", Password: "password1"}, &auth))
	assert.Nil(t, auth.Reconciled)
}

func TestSignedInGameIsStoredImmediately(t *testing.T) {
	b := newBrowser(t, newTestServer(t).URL)
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/auth/signup",
		credentialsReq{Username: "bob", Password: "password1"}, nil))

	final := b.playThrough()
	require.NotNil(t, final.Outcome)
	assert.False(t, final.Outcome.Staged)
	require.NotNil(t, final.Outcome.Summary)

	var d history.Dashboard
	require.Equal(t, http.StatusOK, b.call(http.MethodGet, "/stats/me", nil, &d))
	assert.Equal(t, 1, d.Games)
	assert.Equal(t, 3, d.TotalRounds)
}

func TestAuthRules(t *testing.T) {
	b := newBrowser(t, newTestServer(t).URL)

	var e errorBody
	assert.Equal(t, http.StatusUnauthorized, b.call(http.MethodGet, "/games/mine", nil, &e))
	assert.Equal(t, "Unauthorized", e.Error)

	assert.Equal(t, http.StatusBadRequest, b.call(http.MethodPost, "/auth/signup",
		credentialsReq{Username: "x", Password: "password1"}, nil))

	var me authRes
	require.Equal(t, http.StatusCreated, b.call(http.MethodPost, "/auth/signup",
		credentialsReq{Username: "carol", Password: "password1"}, &me))
	assert.Equal(t, http.StatusConflict, b.call(http.MethodPost, "/auth/signup",
		credentialsReq{Username: "Carol", Password: "password1"}, nil))
	assert.Equal(t, http.StatusUnauthorized, b.call(http.MethodPost, "/auth/login",
		credentialsReq{Username: "carol", Password: "wrong-password"}, nil))

	var who authUser
	assert.Equal(t, http.StatusOK, b.call(http.MethodGet, "/auth/me", nil, &who))
	assert.Equal(t, "carol", who.Username)

	assert.Equal(t, http.StatusOK, b.call(http.MethodGet, "/dashboard/"+me.ID, nil, nil))
	assert.Equal(t, http.StatusForbidden, b.call(http.MethodGet, "/dashboard/someone-else", nil, nil))

	assert.Equal(t, http.StatusOK, b.call(http.MethodPost, "/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, b.call(http.MethodGet, "/auth/me", nil, nil))
}

func TestSubmitClientAgainstServer(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c := submit.NewClient(ts.URL, ts.Client())

	id, err := c.Signup(ctx, "dave", "password1")
	require.NoError(t, err)
	require.NotEmpty(t, id.Token)

	cat, err := kana.Default()
	require.NoError(t, err)
	g, err := game.NewGenerator(cat, rand.NewSource(9)).GenerateGame(4)
	require.NoError(t, err)
	// a card the server has never seen, as the answer of round 0
	extra := kana.Card{ID: "vu", Hiragana: "ゔ", Katakana: "ヴ", Romaji: "vu"}
	g.Rounds[0].Cards[3] = extra
	g.Rounds[0].Answer = extra
	for i := range g.Rounds {
		sel := g.Rounds[i].Cards[0]
		g.Rounds[i].Selected = &sel
		g.Rounds[i].IsCorrect = sel.ID == g.Rounds[i].Answer.ID
	}

	sum, err := c.Submit(ctx, id, g)
	require.NoError(t, err)
	assert.Equal(t, g.ID, sum.GameID)
	assert.Equal(t, g.Accuracy(), sum.Accuracy)

	// resubmitting is harmless
	again, err := c.Submit(ctx, id, g)
	require.NoError(t, err)
	assert.Equal(t, sum.GameID, again.GameID)

	games, err := c.ListGames(ctx, id)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "vu", games[0].Rounds[0].Cards[3].ID)
	assert.Equal(t, "vu.mp3", games[0].Rounds[0].Cards[3].Audio)

	d, err := c.Dashboard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Games)

	_, err = c.Submit(ctx, id, &game.Game{ID: "empty"})
	var se *submit.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)

	bad := g.Clone()
	bad.ID = "bad"
	bad.Rounds[0].Cards[1] = bad.Rounds[0].Cards[0]
	_, err = c.Submit(ctx, id, bad)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)

	reused := g.Clone()
	reused.ID = "reused-rounds"
	_, err = c.Submit(ctx, id, reused)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.Status)

	_, err = c.Submit(ctx, submit.Identity{Token: "forged"}, g)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}
