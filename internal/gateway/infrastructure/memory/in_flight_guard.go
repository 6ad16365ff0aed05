package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardgate/internal/gateway/domain"
)

type heldKey struct {
	token   string
	expires time.Time
}

// InFlightGuard is a process-local domain.InFlightGuard. Keys expire after ttl so a
// crashed request cannot hold a key forever.
type InFlightGuard struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
	held     map[string]heldKey
}

// NewInFlightGuard creates a guard. A non-positive ttl never expires keys.
func NewInFlightGuard(ttl time.Duration) *InFlightGuard {
	return &InFlightGuard{
		ttl:      ttl,
		now:      time.Now,
		newToken: uuid.NewString,
		held:     make(map[string]heldKey),
	}
}

// Acquire marks key as in flight and returns the owner token.
func (g *InFlightGuard) Acquire(ctx context.Context, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.held[key]; ok && (g.ttl <= 0 || g.now().Before(h.expires)) {
		return "", domain.ErrRequestInFlight
	}
	token := g.newToken()
	g.held[key] = heldKey{token: token, expires: g.now().Add(g.ttl)}
	return token, nil
}

// Release frees key when token still owns it. Anything else is a no-op.
func (g *InFlightGuard) Release(ctx context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.held[key]; ok && h.token == token {
		delete(g.held, key)
	}
	return nil
}

var _ domain.InFlightGuard = (*InFlightGuard)(nil)
