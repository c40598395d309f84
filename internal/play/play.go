// internal/play/play.go
//
// Driving a game session from a client and handing the finished game off.
//
//   - Finisher: the hand-off rule. Without an identity the game is staged in
//     the pending slot; with one it is submitted.
//   - Controller: owns one game.Session for one player, remembers the current
//     identity, and guards the hand-off so it runs at most once at a time.
//
// Nothing is written anywhere before the last round has been scored.

package play

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/submit"
)

var (
	// ErrSubmissionInFlight: a hand-off is already running for this controller.
	ErrSubmissionInFlight = errors.New("submission in flight")
	// ErrNothingToRetry: there is no finished game waiting to be handed off.
	ErrNothingToRetry = errors.New("nothing to retry")
)

// Outcome says where a finished game went.
type Outcome struct {
	Staged  bool            `json:"staged"`            // saved to the pending slot
	Summary *submit.Summary `json:"summary,omitempty"` // stored by the collaborator
}

// Finisher hands a finished game to storage.
type Finisher struct {
	Pending   pending.Store
	Submitter submit.Submitter
}

// Finish stages g when id is absent and submits it otherwise.
// A failed submission is returned as is; the caller keeps g.
func (f Finisher) Finish(ctx context.Context, id submit.Identity, g *game.Game) (Outcome, error) {
	if g == nil {
		return Outcome{}, errors.New("finish: nil game")
	}
	if !id.Present() {
		if err := f.Pending.Save(ctx, g); err != nil {
			return Outcome{}, fmt.Errorf("stage game %s: %w", g.ID, err)
		}
		log.Debug().Str("gameId", g.ID).Msg("staged game for later submission")
		return Outcome{Staged: true}, nil
	}
	sum, err := f.Submitter.Submit(ctx, id, g)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Summary: sum}, nil
}

// Controller is the single owner of a session on the client side.
// Methods may be called from different goroutines; network calls happen
// without holding the lock.
type Controller struct {
	mu       sync.Mutex
	session  *game.Session
	identity submit.Identity
	unsent   *game.Game // finished, hand-off not yet successful

	finisher   Finisher
	reconciler *submit.Reconciler
	submitting atomic.Bool
}

// NewController wires a session to a finisher. The reconciler shares the
// finisher's pending slot and submitter.
func NewController(s *game.Session, f Finisher) *Controller {
	return &Controller{
		session:    s,
		finisher:   f,
		reconciler: submit.NewReconciler(f.Pending, f.Submitter),
	}
}

// Start draws a new game. A finished game whose submission failed is staged
// first so it is not dropped.
func (c *Controller) Start(ctx context.Context) (game.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// handoff raises the flag before it reads unsent under mu
	if c.submitting.Load() {
		return c.session.State(), ErrSubmissionInFlight
	}
	if _, err := c.stageUnsentLocked(ctx); err != nil {
		return c.session.State(), err
	}
	return c.session.Start()
}

// StageUnsent moves a finished game whose submission failed into the
// pending slot, where the next reconciliation picks it up. It reports
// whether there was such a game.
func (c *Controller) StageUnsent(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting.Load() {
		return false, ErrSubmissionInFlight
	}
	return c.stageUnsentLocked(ctx)
}

func (c *Controller) stageUnsentLocked(ctx context.Context) (bool, error) {
	if c.unsent == nil {
		return false, nil
	}
	if err := c.finisher.Pending.Save(ctx, c.unsent); err != nil {
		return false, fmt.Errorf("stage unsent game: %w", err)
	}
	log.Info().Str("gameId", c.unsent.ID).Msg("staged unsent game")
	c.unsent = nil
	return true, nil
}

// Select picks a candidate of the current round.
func (c *Controller) Select(cardID string) (game.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.SelectCard(cardID)
}

// Advance scores the current round. Scoring the last round hands the game
// off; the returned Outcome is nil until then.
func (c *Controller) Advance(ctx context.Context) (game.State, *Outcome, error) {
	if c.submitting.Load() {
		return c.State(), nil, ErrSubmissionInFlight
	}
	c.mu.Lock()
	st, err := c.session.Advance()
	if err != nil || st.Status != game.StatusFinished {
		c.mu.Unlock()
		return st, nil, err
	}
	g, err := c.session.Result()
	if err != nil {
		c.mu.Unlock()
		return st, nil, err
	}
	c.unsent = g
	c.mu.Unlock()

	out, err := c.handoff(ctx)
	return st, out, err
}

// Retry hands off the finished game again after a failed submission.
func (c *Controller) Retry(ctx context.Context) (*Outcome, error) {
	return c.handoff(ctx)
}

func (c *Controller) handoff(ctx context.Context) (*Outcome, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.submitting.Store(false)

	c.mu.Lock()
	g, id := c.unsent, c.identity
	c.mu.Unlock()
	if g == nil {
		return nil, ErrNothingToRetry
	}

	out, err := c.finisher.Finish(ctx, id, g)
	if err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("hand-off failed; game kept for retry")
		return nil, err
	}

	c.mu.Lock()
	if c.unsent == g {
		c.unsent = nil
	}
	c.mu.Unlock()
	return &out, nil
}

// Login sets the identity and submits whatever was staged while anonymous.
func (c *Controller) Login(ctx context.Context, id submit.Identity) (*submit.Summary, error) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
	return c.reconciler.ReconcilePending(ctx, id)
}

// Logout forgets the identity; later games are staged.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.identity = submit.Identity{}
	c.mu.Unlock()
}

// Identity returns the current identity (zero when anonymous).
func (c *Controller) Identity() submit.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// State returns the session snapshot.
func (c *Controller) State() game.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

// Current returns a copy of the round being played.
func (c *Controller) Current() (game.Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Current()
}

// Submitting reports whether a hand-off is running.
func (c *Controller) Submitting() bool { return c.submitting.Load() }

// Unsent reports whether a finished game is waiting for a successful hand-off.
func (c *Controller) Unsent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsent != nil
}
