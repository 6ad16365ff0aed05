package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"cardgate/internal/gateway/domain"
)

const keyPrefix = "cardgate:inflight:"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// InFlightGuard implements domain.InFlightGuard with SET NX so duplicates are
// rejected across every gateway instance sharing the Redis server. Keys carry a
// TTL so a crashed request frees its key on its own.
type InFlightGuard struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewInFlightGuard creates a guard on client.
func NewInFlightGuard(client *goredis.Client, ttl time.Duration) *InFlightGuard {
	return &InFlightGuard{client: client, ttl: ttl}
}

// Acquire marks key as in flight and returns the owner token stored as its value.
func (g *InFlightGuard) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	set, err := g.client.SetNX(ctx, keyPrefix+key, token, g.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis SETNX: %w", err)
	}
	if !set {
		return "", domain.ErrRequestInFlight
	}
	return token, nil
}

// Release frees key when token still owns it.
func (g *InFlightGuard) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}

// Ping checks connectivity, for readiness probes.
func (g *InFlightGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

var _ domain.InFlightGuard = (*InFlightGuard)(nil)
