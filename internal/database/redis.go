package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-integrity/internal/config"
)

const redisPingTimeout = 5 * time.Second

// NewRedisClient connects to the Redis instance that holds login sessions,
// cached answer keys and live stream presence. Presence entries expire after
// cfg.StreamPresenceTTL, so that TTL must stay well above the stream refresh
// interval. The client is closed again if the first ping fails.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.StreamPresenceTTL <= 0 {
		return nil, fmt.Errorf("stream presence TTL must be positive, got %s", cfg.StreamPresenceTTL)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Dur("answer_key_ttl", cfg.AnswerKeyCacheTTL).
		Dur("presence_ttl", cfg.StreamPresenceTTL).
		Msg("Redis connected")

	return rdb, nil
}
