package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/francislegacy/legacy/internal/metrics"
	"github.com/francislegacy/legacy/internal/model"
)

const redisKeyPrefix = "legacy:login:"

// RedisLimiter implements the failed-login limiter on a shared Redis so that
// every server instance sees the same counters. The window starts at the
// first failure and is enforced with a key expiry. Redis errors fail open.
type RedisLimiter struct {
	client   *redis.Client
	resolver KeyResolver
	cfg      Config
	logger   *slog.Logger
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client *redis.Client, resolver KeyResolver, cfg Config, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{client: client, resolver: resolver, cfg: cfg.withDefaults(), logger: logger}
}

// NewRedisLimiterFromURL parses a redis:// URL and creates a limiter.
func NewRedisLimiterFromURL(url string, resolver KeyResolver, cfg Config, logger *slog.Logger) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisLimiter(redis.NewClient(opt), resolver, cfg, logger), nil
}

// Window returns the configured window length.
func (r *RedisLimiter) Window() time.Duration { return r.cfg.Window }

// Ping checks the Redis connection.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

func (r *RedisLimiter) key(ctx context.Context, handle string) string {
	return redisKeyPrefix + resolveKey(ctx, r.resolver, r.logger, handle)
}

func (r *RedisLimiter) attempts(ctx context.Context, key string) (int, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// IsRateLimited reports whether the account behind handle is blocked.
func (r *RedisLimiter) IsRateLimited(ctx context.Context, handle string) bool {
	n, err := r.attempts(ctx, r.key(ctx, handle))
	if err != nil {
		r.logger.Error("redis rate limit lookup", "error", err)
		return false
	}
	return n >= r.cfg.MaxAttempts
}

// RecordFailedAttempt counts a failed login for the account behind handle.
func (r *RedisLimiter) RecordFailedAttempt(ctx context.Context, handle string) {
	key := r.key(ctx, handle)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Error("redis rate limit increment", "error", err)
		return
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, r.cfg.Window).Err(); err != nil {
			r.logger.Error("redis rate limit expire", "error", err)
		}
	}
	if int(n) == r.cfg.MaxAttempts {
		metrics.RateLimitBlocks.Inc()
		r.logger.Warn("login rate limit reached", "key", key, "attempts", n)
	}
}

// RemainingAttempts returns how many more failures the account may have in
// the current window.
func (r *RedisLimiter) RemainingAttempts(ctx context.Context, handle string) int {
	n, err := r.attempts(ctx, r.key(ctx, handle))
	if err != nil {
		return r.cfg.MaxAttempts
	}
	return max(0, r.cfg.MaxAttempts-n)
}

// Clear forgets the counter of the account behind handle.
func (r *RedisLimiter) Clear(ctx context.Context, handle string) {
	if err := r.client.Del(ctx, r.key(ctx, handle)).Err(); err != nil {
		r.logger.Error("redis rate limit clear", "error", err)
	}
}

// ClearPrincipal forgets the counter of a known account.
func (r *RedisLimiter) ClearPrincipal(ctx context.Context, kind model.PrincipalKind, id string) {
	if err := r.client.Del(ctx, redisKeyPrefix+model.LimiterKey(kind, id)).Err(); err != nil {
		r.logger.Error("redis rate limit clear", "error", err)
	}
}

// Stats summarizes the tracked accounts by scanning the limiter keys.
func (r *RedisLimiter) Stats(ctx context.Context) model.RateLimitStats {
	var st model.RateLimitStats
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.attempts(ctx, iter.Val())
		if err != nil {
			continue
		}
		st.TotalTrackedUsers++
		st.ActiveAttempts += n
		if n >= r.cfg.MaxAttempts {
			st.BlockedUsers++
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("redis rate limit stats", "error", err)
	}
	return st
}
