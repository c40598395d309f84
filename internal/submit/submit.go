// internal/submit/submit.go
//
// Hand-off of finished games to the persistence collaborator.
//
//   - Submitter: anything that can persist a finished game for an identity
//     (the HTTP Client here, or the server's history store).
//   - Reconciler: submits the game staged in a pending.Store once an identity
//     becomes available.
//
// No automatic retries happen at this level; callers decide when to try again.

package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// ErrMissingIdentity is wrapped in a SubmissionError when no owner is known.
var ErrMissingIdentity = errors.New("no identity")

// Identity is who a game is submitted for. Remote callers authenticate with
// Token; in-process callers only need OwnerID.
type Identity struct {
	OwnerID  string `json:"id"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Present reports whether the identity can own a game.
func (i Identity) Present() bool { return i.OwnerID != "" || i.Token != "" }

// Summary is the collaborator's receipt for a stored game.
type Summary struct {
	GameID    string    `json:"gameId"`
	Accuracy  int       `json:"accuracy"` // percent, computed server-side
	Rounds    int       `json:"rounds"`
	Correct   int       `json:"correct"`
	CreatedAt time.Time `json:"createdAt"`
}

// Submitter persists a finished game.
type Submitter interface {
	Submit(ctx context.Context, id Identity, g *game.Game) (*Summary, error)
}

// SubmissionError reports a failed exchange with the collaborator: missing
// identity, transport failure, or a non-success status.
type SubmissionError struct {
	Op     string // "submit", "login", ...
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsSubmissionError reports whether err is (or wraps) a SubmissionError.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
