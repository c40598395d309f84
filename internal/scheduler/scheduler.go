// Package scheduler runs periodic housekeeping for the server.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/store"
)

// Scheduler drops abandoned pending slots and idle play sessions.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	db          *sqlx.DB // nil when pending slots are not in SQL
	sessions    store.Store
	pendingTTL  time.Duration
	sessionIdle time.Duration
	now         func() time.Time
}

// New creates a scheduler. db may be nil (redis expires slots on its own).
func New(db *sqlx.DB, sessions store.Store, pendingTTL, sessionIdle time.Duration) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		db:          db,
		sessions:    sessions,
		pendingTTL:  pendingTTL,
		sessionIdle: sessionIdle,
		now:         time.Now,
	}
}

// Start runs the sweep every hour, without blocking.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.sweep); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	slots, sessions, err := s.Sweep(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sweep")
		return
	}
	log.Debug().Int64("pendingSlots", slots).Int("sessions", sessions).Msg("sweep done")
}

// Sweep runs one housekeeping pass and reports what it removed.
func (s *Scheduler) Sweep(ctx context.Context) (slots int64, sessions int, err error) {
	now := s.now()
	if s.sessions != nil {
		sessions = s.sessions.PurgeIdle(ctx, now.Add(-s.sessionIdle))
	}
	if s.db != nil {
		slots, err = pending.PurgeStale(ctx, s.db, now.Add(-s.pendingTTL))
	}
	return slots, sessions, err
}
