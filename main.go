package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kana/apps/go-server/internal/config"
	"github.com/robalobadob/kana/apps/go-server/internal/database"
	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/history"
	"github.com/robalobadob/kana/apps/go-server/internal/httpserver"
	"github.com/robalobadob/kana/apps/go-server/internal/kana"
	"github.com/robalobadob/kana/apps/go-server/internal/pending"
	"github.com/robalobadob/kana/apps/go-server/internal/scheduler"
	"github.com/robalobadob/kana/apps/go-server/internal/store"
)

func main() {
	cfg := config.LoadServer()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cat, err := kana.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load card catalog")
	}

	db, err := database.OpenMigrated(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()

	hist := history.NewStore(db)
	seeded, err := hist.SeedCards(context.Background(), cat.All())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed cards")
	}
	log.Info().Int64("inserted", seeded).Int("catalog", cat.Len()).Msg("cards seeded")

	pendingFor, sweepDB := pendingBackend(cfg, db)
	sessions := store.NewMemoryStore()

	sched := scheduler.New(sweepDB, sessions, cfg.PendingTTL, cfg.SessionIdle)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	srv := httpserver.New(httpserver.Deps{
		Config:     cfg,
		DB:         db,
		Catalog:    cat,
		Generator:  game.NewGenerator(cat, nil),
		Sessions:   sessions,
		History:    hist,
		PendingFor: pendingFor,
	})
	log.Info().Str("port", cfg.Port).Str("pending", cfg.PendingBackend).Msg("starting kana server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// pendingBackend picks where guest games are staged. The returned db is the
// one the scheduler should sweep; redis expires its own keys.
func pendingBackend(cfg config.Server, db *sqlx.DB) (func(string) pending.Store, *sqlx.DB) {
	if cfg.PendingBackend != "redis" {
		return func(slot string) pending.Store { return pending.NewSQLStore(db, slot) }, db
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, err := pending.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	return func(slot string) pending.Store {
		return pending.NewRedisStore(rdb, slot, cfg.PendingTTL)
	}, nil
}
