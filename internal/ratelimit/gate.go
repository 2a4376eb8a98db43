// Package ratelimit provides the boolean gate checked before any guest
// write reaches the ledger.
package ratelimit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Gate reports whether a request identified by key may proceed.
type Gate interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Unlimited allows everything. Used when no redis is configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

const keyPrefix = "rsvp:rate:"

// RedisGate is a fixed-window counter per key. Redis failures degrade
// open: the request is allowed and a warning is logged.
type RedisGate struct {
	rdb    goredis.UniversalClient
	limit  int64
	window time.Duration
	logger *zap.Logger
}

func NewRedisGate(rdb goredis.UniversalClient, limit int, window time.Duration, logger *zap.Logger) *RedisGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGate{rdb: rdb, limit: int64(limit), window: window, logger: logger}
}

// NewClient connects to redis and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (g *RedisGate) Allow(ctx context.Context, key string) (bool, error) {
	if g.rdb == nil || g.limit <= 0 {
		return true, nil
	}

	k := keyPrefix + key
	var incr *goredis.IntCmd
	_, err := g.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, g.window)
		return nil
	})
	if err != nil {
		g.logger.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return true, nil
	}
	return incr.Val() <= g.limit, nil
}

var (
	_ Gate = Unlimited{}
	_ Gate = (*RedisGate)(nil)
)
