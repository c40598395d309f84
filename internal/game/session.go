// internal/game/session.go
//
// Session is the state machine for one player's game:
//
//   NotStarted --Start--> InProgress(0) --Advance--> ... InProgress(n-1) --Advance--> Finished
//
// Every transition returns a State snapshot. Rounds are finalized strictly in
// order: Advance commits the current round before the next one becomes
// current. Once Finished, the game is frozen and only handed out as copies.
//
// A Session is not safe for concurrent use; callers serialize access.
package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the coarse lifecycle position of a session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// State is a read-only snapshot returned by every transition.
type State struct {
	Status     Status `json:"status"`
	RoundIndex int    `json:"roundIndex"`
	RoundLimit int    `json:"roundLimit"`
	Accuracy   int    `json:"accuracy"`           // correct rounds so far
	Selected   string `json:"selected,omitempty"` // card id picked in the current round
}

// Session tracks progress through a generated game.
type Session struct {
	id         string
	gen        *Generator
	roundLimit int

	game     *Game
	index    int
	accuracy int
	status   Status

	lastActive time.Time
}

// NewSession prepares a session; call Start to draw the first game.
func NewSession(gen *Generator, roundLimit int) (*Session, error) {
	if roundLimit <= 0 {
		return nil, fmt.Errorf("new session: %w (got %d)", ErrDegenerateConfiguration, roundLimit)
	}
	return &Session{
		id:         uuid.NewString(),
		gen:        gen,
		roundLimit: roundLimit,
		status:     StatusNotStarted,
		lastActive: time.Now(),
	}, nil
}

// ID identifies the session (not the game; a session may play several games).
func (s *Session) ID() string { return s.id }

// LastActive reports when the session was last mutated.
func (s *Session) LastActive() time.Time { return s.lastActive }

// Start draws a fresh game, discarding any previous one.
func (s *Session) Start() (State, error) {
	g, err := s.gen.GenerateGame(s.roundLimit)
	if err != nil {
		return s.State(), err
	}
	s.game = g
	s.index = 0
	s.accuracy = 0
	s.status = StatusInProgress
	s.lastActive = time.Now()
	return s.State(), nil
}

// SelectCard marks cardID as the player's pick for the current round.
// Picking again before Advance replaces the previous pick.
func (s *Session) SelectCard(cardID string) (State, error) {
	if err := s.requireInProgress(); err != nil {
		return s.State(), err
	}
	r := &s.game.Rounds[s.index]
	card, ok := r.Candidate(cardID)
	if !ok {
		return s.State(), fmt.Errorf("select %q: %w", cardID, ErrInvalidSelection)
	}
	r.Selected = &card
	s.lastActive = time.Now()
	return s.State(), nil
}

// Advance scores the current round and moves to the next one, or finishes
// the game after the last round.
func (s *Session) Advance() (State, error) {
	if err := s.requireInProgress(); err != nil {
		return s.State(), err
	}
	r := &s.game.Rounds[s.index]
	if r.Selected == nil {
		return s.State(), fmt.Errorf("advance round %d: %w", s.index, ErrPrematureAdvance)
	}
	r.IsCorrect = r.Selected.ID == r.Answer.ID
	if r.IsCorrect {
		s.accuracy++
	}
	if s.index < s.roundLimit-1 {
		s.index++
	} else {
		s.status = StatusFinished
	}
	s.lastActive = time.Now()
	return s.State(), nil
}

// State returns the current snapshot.
func (s *Session) State() State {
	st := State{
		Status:     s.status,
		RoundIndex: s.index,
		RoundLimit: s.roundLimit,
		Accuracy:   s.accuracy,
	}
	if s.status == StatusInProgress {
		if sel := s.game.Rounds[s.index].Selected; sel != nil {
			st.Selected = sel.ID
		}
	}
	return st
}

// Current returns a copy of the round being played.
func (s *Session) Current() (Round, error) {
	if err := s.requireInProgress(); err != nil {
		return Round{}, err
	}
	return s.game.Rounds[s.index].Clone(), nil
}

// Result returns a copy of the completed game.
func (s *Session) Result() (*Game, error) {
	if s.status != StatusFinished {
		return nil, ErrNotFinished
	}
	return s.game.Clone(), nil
}

func (s *Session) requireInProgress() error {
	switch s.status {
	case StatusNotStarted:
		return ErrNotStarted
	case StatusFinished:
		return ErrGameFinished
	}
	return nil
}
