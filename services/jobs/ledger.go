package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trezcool/quizmaster/core/report"
)

// RedisLedger stores the job run claims as Redis keys expiring after ttl.
type RedisLedger struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ report.Ledger = (*RedisLedger)(nil)

func NewRedisLedger(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	return &RedisLedger{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) key(runKey, recipient string) string {
	return l.prefix + ":ledger:" + runKey + ":" + recipient
}

func (l *RedisLedger) Claim(ctx context.Context, runKey, recipient string) (bool, error) {
	return l.rdb.SetNX(ctx, l.key(runKey, recipient), NowFunc().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RedisLedger) Release(ctx context.Context, runKey, recipient string) error {
	return l.rdb.Del(ctx, l.key(runKey, recipient)).Err()
}
