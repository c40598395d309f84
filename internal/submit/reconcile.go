package submit

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/pending"
)

// Reconciler submits a staged game once its owner is known.
type Reconciler struct {
	pending pending.Store
	sub     Submitter
	mu      sync.Mutex // one reconciliation at a time
}

// NewReconciler wires a pending slot to a submitter.
func NewReconciler(p pending.Store, sub Submitter) *Reconciler {
	return &Reconciler{pending: p, sub: sub}
}

// ReconcilePending submits the staged game for id, if there is one.
// Returns (nil, nil) when nothing was staged, so repeated calls are harmless.
//
// If the submission fails the game is put back into the slot and the error is
// returned; the next identity-available event can try again.
func (r *Reconciler) ReconcilePending(ctx context.Context, id Identity) (*Summary, error) {
	if !id.Present() {
		return nil, &SubmissionError{Op: "reconcile", Err: ErrMissingIdentity}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.pending.LoadAndClear(ctx)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}

	sum, err := r.sub.Submit(ctx, id, g)
	if err != nil {
		if rerr := r.pending.Save(ctx, g); rerr != nil {
			log.Error().Err(rerr).Str("gameId", g.ID).Msg("restore pending game after failed submit")
		}
		return nil, err
	}
	log.Info().Str("gameId", g.ID).Str("owner", id.OwnerID).Int("accuracy", sum.Accuracy).Msg("reconciled pending game")
	return sum, nil
}
