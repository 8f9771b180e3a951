// Package ratelimit throttles expensive operations, mainly uploads, per
// client key in fixed time windows.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindowLimiter limits requests per key in a fixed time window. It runs
// in-process by default; with a redis client it counts across instances. The
// in-process mode fails open on nothing, the redis mode fails closed on
// backend errors.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*window

	redisClient *redis.Client
	redisPrefix string
}

type window struct {
	count   int
	resetAt time.Time
}

// NewFixedWindowLimiter creates an in-process limiter.
func NewFixedWindowLimiter(limit int, windowSize time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || windowSize <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &FixedWindowLimiter{
		limit:   limit,
		window:  windowSize,
		windows: make(map[string]*window),
	}, nil
}

// NewRedisFixedWindowLimiter creates a redis-backed limiter shared across
// instances.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, windowSize time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || windowSize <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "reader:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: windowSize,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
	}, nil
}

// Allow returns true when the key is within quota for the current window.
func (l *FixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if l.redisClient != nil {
		return l.allowRedis(key)
	}
	return l.allowLocal(key)
}

func (l *FixedWindowLimiter) allowLocal(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	w.count++
	return w.count <= l.limit
}

func (l *FixedWindowLimiter) allowRedis(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	redisKey := l.redisPrefix + ":" + key
	count, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, l.window.Milliseconds()).Int()
	if err != nil {
		return false
	}
	return count <= l.limit
}
