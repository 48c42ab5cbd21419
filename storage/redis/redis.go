package redisstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/quizmaster/core"
)

// Open connects to Redis and waits for it to be ready.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	var err error
	maxAttempts := 20
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return rdb, nil
		}
		select {
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		}
	}
	_ = rdb.Close()
	return nil, errors.Wrap(err, "redis ping timeout")
}

// TokenRevoker denylists JWT ids until their expiry.
type TokenRevoker struct {
	rdb    *redis.Client
	prefix string
}

func NewTokenRevoker(rdb *redis.Client, prefix string) *TokenRevoker {
	return &TokenRevoker{rdb: rdb, prefix: prefix + ":revoked:"}
}

func (r *TokenRevoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired
	}
	return r.rdb.Set(ctx, r.prefix+tokenID, 1, ttl).Err()
}

func (r *TokenRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.prefix+tokenID).Result()
	return n > 0, err
}
