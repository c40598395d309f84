package pending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
)

// redisStore keeps the slot under one key with a TTL.
type redisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore stages games under kana:pending:<slot>. A zero ttl keeps the
// key until it is consumed.
func NewRedisStore(rdb *redis.Client, slot string, ttl time.Duration) Store {
	return &redisStore{rdb: rdb, key: "kana:pending:" + strings.TrimSpace(slot), ttl: ttl}
}

// DialRedis parses a redis:// URL and checks the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("pending: redis url is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("pending: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pending: redis ping: %w", err)
	}
	return rdb, nil
}

func (r *redisStore) Save(ctx context.Context, g *game.Game) error {
	raw, err := Encode(g)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("pending: redis set %s: %w", r.key, err)
	}
	return nil
}

// LoadAndClear uses GETDEL so two readers can never both receive the game.
func (r *redisStore) LoadAndClear(ctx context.Context) (*game.Game, error) {
	raw, err := r.rdb.GetDel(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending: redis getdel %s: %w", r.key, err)
	}
	return Decode(raw)
}
