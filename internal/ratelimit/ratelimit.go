// Package ratelimit ограничивает частоту запросов по ключу (фиксированное окно в Redis)
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter fixed-window счётчик. Без клиента всё разрешено.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
}

func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{client: client, limit: int64(limit), window: window, prefix: "storefront:rl:"}
}

// NewFromURL подключается к Redis по URL вида redis://host:6379/0
func NewFromURL(url string, limit int, window time.Duration) (*Limiter, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return New(client, limit, window), client, nil
}

// Allow counts one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, nil
	}
	k := l.prefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return n <= l.limit, nil
}

func (l *Limiter) Window() time.Duration { return l.window }
