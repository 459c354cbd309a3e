package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "intake:dedup:"

type claimStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisGuard shares claims across server instances.
type RedisGuard struct {
	client claimStore
	window time.Duration
}

func NewRedisGuard(client *redis.Client, window time.Duration) *RedisGuard {
	return newRedisGuard(client, window)
}

func newRedisGuard(client claimStore, window time.Duration) *RedisGuard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisGuard{client: client, window: window}
}

func (g *RedisGuard) Claim(ctx context.Context, sessionID, content string) (bool, error) {
	key := keyPrefix + Fingerprint(sessionID, content)
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), g.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Release drops a claim so the same content can be resubmitted after a failed turn.
func (g *RedisGuard) Release(ctx context.Context, sessionID, content string) error {
	if err := g.client.Del(ctx, keyPrefix+Fingerprint(sessionID, content)).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}

// NewRedisClient connects to the Redis URL and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
