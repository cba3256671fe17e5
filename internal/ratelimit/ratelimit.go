// Package ratelimit is a redis-backed token bucket that caps how fast a
// given caller (or affinity key) can submit tasks. It is standalone: the
// Pool's Exec admission path does not consult it. Grounded directly on
// the teacher's internal/rate/limiter.go token-bucket-over-redis design,
// generalized from a per-client-UUID SMS sender limit to an arbitrary
// string key so it can gate by caller ID, affinity key, or task type.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter struct {
	redis  *redis.Client
	logger *zap.Logger
	rps    int
	burst  int
}

func New(client *redis.Client, logger *zap.Logger, rps, burst int) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{redis: client, logger: logger, rps: rps, burst: burst}
}

// Allow consumes one token for key, refilling at rps tokens/sec up to
// burst. Returns false with a retry-after when the bucket is empty.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("gopool:ratelimit:%s", key)
	now := time.Now()
	windowStart := now.Truncate(time.Second)

	currentTokensStr, err := l.redis.Get(ctx, redisKey).Result()
	currentTokens := 0
	lastRefill := windowStart
	if err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("ratelimit: read bucket: %w", err)
	}
	if err != redis.Nil {
		var lastRefillUnix int64
		fmt.Sscanf(currentTokensStr, "%d:%d", &currentTokens, &lastRefillUnix)
		lastRefill = time.Unix(lastRefillUnix, 0)
	} else {
		currentTokens = l.burst
	}

	elapsed := windowStart.Sub(lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * l.rps
	if currentTokens+tokensToAdd > l.burst {
		currentTokens = l.burst
	} else {
		currentTokens += tokensToAdd
	}

	if currentTokens <= 0 {
		retryAfter := time.Second - time.Duration(now.Nanosecond())
		l.logger.Debug("admission rejected by rate limiter", zap.String("key", key))
		return false, retryAfter, nil
	}

	currentTokens--
	newValue := fmt.Sprintf("%d:%d", currentTokens, windowStart.Unix())
	if err := l.redis.Set(ctx, redisKey, newValue, time.Minute).Err(); err != nil {
		return false, 0, fmt.Errorf("ratelimit: write bucket: %w", err)
	}
	return true, 0, nil
}

// Reset clears the bucket for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, fmt.Sprintf("gopool:ratelimit:%s", key)).Err()
}
