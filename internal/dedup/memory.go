package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard keeps claims in process. It is used when no Redis is configured.
type MemoryGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewMemoryGuard(window time.Duration) *MemoryGuard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryGuard{
		claims: make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

func (g *MemoryGuard) Claim(ctx context.Context, sessionID, content string) (bool, error) {
	key := Fingerprint(sessionID, content)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, expires := range g.claims {
		if !now.Before(expires) {
			delete(g.claims, k)
		}
	}
	if _, taken := g.claims[key]; taken {
		return false, nil
	}
	g.claims[key] = now.Add(g.window)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, sessionID, content string) error {
	g.mu.Lock()
	delete(g.claims, Fingerprint(sessionID, content))
	g.mu.Unlock()
	return nil
}
