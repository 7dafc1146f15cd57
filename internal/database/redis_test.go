package database

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stemsi/exstem-integrity/internal/config"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	base := config.Config{
		RedisURL:          "redis://" + mr.Addr() + "/0",
		AnswerKeyCacheTTL: 30 * time.Minute,
		StreamPresenceTTL: 45 * time.Second,
	}

	t.Run("connects", func(t *testing.T) {
		cfg := base
		rdb, err := NewRedisClient(t.Context(), &cfg, zerolog.Nop())
		require.NoError(t, err)
		defer rdb.Close()
		assert.NoError(t, rdb.Set(t.Context(), "k", "v", 0).Err())
	})

	t.Run("bad url", func(t *testing.T) {
		cfg := base
		cfg.RedisURL = "http://nope"
		_, err := NewRedisClient(t.Context(), &cfg, zerolog.Nop())
		assert.ErrorContains(t, err, "parse redis URL")
	})

	t.Run("zero presence ttl", func(t *testing.T) {
		cfg := base
		cfg.StreamPresenceTTL = 0
		_, err := NewRedisClient(t.Context(), &cfg, zerolog.Nop())
		assert.ErrorContains(t, err, "stream presence TTL")
	})

	t.Run("unreachable", func(t *testing.T) {
		dead := miniredis.RunT(t)
		cfg := base
		cfg.RedisURL = "redis://" + dead.Addr() + "/0"
		dead.Close()
		_, err := NewRedisClient(t.Context(), &cfg, zerolog.Nop())
		assert.ErrorContains(t, err, "ping redis")
	})
}
