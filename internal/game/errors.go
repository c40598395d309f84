package game

import "errors"

var (
	// ErrInvalidSelection: the card id is not a candidate of the current round.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrPrematureAdvance: advance was requested before a card was selected.
	ErrPrematureAdvance = errors.New("no card selected")
	// ErrDegenerateConfiguration: round limit must be positive.
	ErrDegenerateConfiguration = errors.New("round limit must be positive")
	// ErrNotStarted: the session has no game yet.
	ErrNotStarted = errors.New("game not started")
	// ErrGameFinished: the game is over and no longer accepts input.
	ErrGameFinished = errors.New("game finished")
	// ErrNotFinished: the result is only available once the last round is scored.
	ErrNotFinished = errors.New("game not finished")
)
