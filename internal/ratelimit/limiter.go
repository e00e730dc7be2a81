// Package ratelimit tracks failed login attempts per account and blocks an
// account after too many failures inside a window.
//
// Limiter keeps its counters in process memory: each server instance counts
// independently and counters are lost on restart. RedisLimiter shares
// counters between instances.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/francislegacy/legacy/internal/metrics"
	"github.com/francislegacy/legacy/internal/model"
)

// KeyResolver maps a login handle onto a stable per-account key.
type KeyResolver interface {
	ResolveLimiterKey(ctx context.Context, handle string) (string, error)
}

type resolvedKeyCtx struct{}

// WithKey returns a context carrying the already resolved key of a handle.
// Limiter calls made with it use key instead of consulting the resolver.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, resolvedKeyCtx{}, key)
}

func resolveKey(ctx context.Context, resolver KeyResolver, logger *slog.Logger, handle string) string {
	if k, ok := ctx.Value(resolvedKeyCtx{}).(string); ok && k != "" {
		return k
	}
	if resolver == nil {
		return model.UnknownLimiterKey(handle)
	}
	k, err := resolver.ResolveLimiterKey(ctx, handle)
	if err != nil {
		logger.Error("resolve rate limit key", "handle", handle, "error", err)
		return model.UnknownLimiterKey(handle)
	}
	return k
}

// Config holds limiter tunables.
type Config struct {
	Window        time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns a 15 minute window, 15 attempts and a 5 minute sweep.
func DefaultConfig() Config {
	return Config{
		Window:        15 * time.Minute,
		MaxAttempts:   15,
		SweepInterval: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type entry struct {
	attempts    int
	windowStart time.Time
	blocked     bool
}

// Limiter is the in-memory failed-login limiter. It is safe for concurrent
// use.
type Limiter struct {
	resolver KeyResolver
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a Limiter. Call Start to run the background sweep.
func New(resolver KeyResolver, cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		entries:  make(map[string]*entry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.cfg.Window }

// Start runs the periodic sweep of expired entries until ctx is cancelled
// or Stop is called.
func (l *Limiter) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// Stop ends the sweep goroutine started by Start and waits for it to exit.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	if l.started.Load() {
		<-l.done
	}
}

func (l *Limiter) key(ctx context.Context, handle string) string {
	return resolveKey(ctx, l.resolver, l.logger, handle)
}

func (l *Limiter) expired(e *entry, now time.Time) bool {
	return now.Sub(e.windowStart) > l.cfg.Window
}

// IsRateLimited reports whether the account behind handle is blocked.
// An entry whose window has passed is discarded.
func (l *Limiter) IsRateLimited(ctx context.Context, handle string) bool {
	key := l.key(ctx, handle)
	now := l.cfg.Clock()

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return false
	}
	if l.expired(e, now) {
		delete(l.entries, key)
		return false
	}
	return e.blocked
}

// RecordFailedAttempt counts a failed login for the account behind handle.
func (l *Limiter) RecordFailedAttempt(ctx context.Context, handle string) {
	key := l.key(ctx, handle)
	now := l.cfg.Clock()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[key] = e
	}
	if l.expired(e, now) {
		e.attempts = 1
		e.windowStart = now
		e.blocked = false
	} else {
		e.attempts++
	}
	newlyBlocked := false
	if e.attempts >= l.cfg.MaxAttempts {
		newlyBlocked = !e.blocked
		e.blocked = true
	}
	attempts := e.attempts
	l.mu.Unlock()

	if newlyBlocked {
		metrics.RateLimitBlocks.Inc()
		l.logger.Warn("login rate limit reached", "key", key, "attempts", attempts)
	}
}

// RemainingAttempts returns how many more failures the account may have in
// the current window.
func (l *Limiter) RemainingAttempts(ctx context.Context, handle string) int {
	key := l.key(ctx, handle)
	now := l.cfg.Clock()

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || l.expired(e, now) {
		return l.cfg.MaxAttempts
	}
	return max(0, l.cfg.MaxAttempts-e.attempts)
}

// Clear forgets the counter of the account behind handle.
func (l *Limiter) Clear(ctx context.Context, handle string) {
	key := l.key(ctx, handle)
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	l.logger.Debug("rate limit cleared", "key", key)
}

// ClearPrincipal forgets the counter of a known account.
func (l *Limiter) ClearPrincipal(_ context.Context, kind model.PrincipalKind, id string) {
	key := model.LimiterKey(kind, id)
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	l.logger.Debug("rate limit cleared", "key", key)
}

// Stats summarizes the tracked accounts.
func (l *Limiter) Stats(_ context.Context) model.RateLimitStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := model.RateLimitStats{TotalTrackedUsers: len(l.entries)}
	for _, e := range l.entries {
		if e.blocked {
			st.BlockedUsers++
		}
		st.ActiveAttempts += e.attempts
	}
	return st
}

func (l *Limiter) sweep() {
	now := l.cfg.Clock()
	l.mu.Lock()
	removed := 0
	for k, e := range l.entries {
		if l.expired(e, now) {
			delete(l.entries, k)
			removed++
		}
	}
	l.mu.Unlock()
	if removed > 0 {
		l.logger.Debug("swept expired rate limit entries", "count", removed)
	}
}
