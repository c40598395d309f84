package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/history"
)

// Client talks to the kana server's JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL (e.g. http://localhost:5175).
// A nil hc gets a client with a 10s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Submit posts a finished game to POST /games.
func (c *Client) Submit(ctx context.Context, id Identity, g *game.Game) (*Summary, error) {
	if id.Token == "" {
		return nil, &SubmissionError{Op: "submit", Err: ErrMissingIdentity}
	}
	if g == nil {
		return nil, &SubmissionError{Op: "submit", Err: errors.New("nil game")}
	}
	var sum Summary
	if err := c.do(ctx, "submit", http.MethodPost, "/games", id.Token, g, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for an Identity carrying a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (Identity, error) {
	var id Identity
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", credentials{username, password}, &id)
	return id, err
}

// Signup creates an account and returns its Identity.
func (c *Client) Signup(ctx context.Context, username, password string) (Identity, error) {
	var id Identity
	err := c.do(ctx, "signup", http.MethodPost, "/auth/signup", "", credentials{username, password}, &id)
	return id, err
}

// ListGames fetches the identity's stored games, newest first.
func (c *Client) ListGames(ctx context.Context, id Identity) ([]history.StoredGame, error) {
	var out []history.StoredGame
	if err := c.do(ctx, "list", http.MethodGet, "/games/mine", id.Token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dashboard fetches the identity's aggregate stats.
func (c *Client) Dashboard(ctx context.Context, id Identity) (*history.Dashboard, error) {
	var out history.Dashboard
	if err := c.do(ctx, "dashboard", http.MethodGet, "/stats/me", id.Token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one JSON request and decodes a 2xx response into out.
// Failures come back as *SubmissionError.
func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &SubmissionError{Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &SubmissionError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &SubmissionError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &SubmissionError{Op: op, Status: res.StatusCode, Err: errorBody(res.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &SubmissionError{Op: op, Status: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorBody extracts {"error":"..."} from a failed response.
func errorBody(r io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return errors.New(e.Error)
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return errors.New(s)
	}
	return errors.New("request failed")
}
