package search

import (
	"context"
	"sync"
	"time"
)

// keyGate serializes requests that share an API key. The holder releases it
// with the delay the backend asked for before the next request.
type keyGate struct {
	mu      sync.Mutex
	readyAt time.Time
}

var gates sync.Map //nolint:gochecknoglobals // map[string]*keyGate

// gateFor returns the gate shared by every provider using key.
func gateFor(key string) *keyGate {
	g, _ := gates.LoadOrStore(key, &keyGate{})
	return g.(*keyGate)
}

// acquire blocks until the gate is ready and returns with it held.
func (g *keyGate) acquire(ctx context.Context) error {
	g.mu.Lock()
	for {
		wait := time.Until(g.readyAt)
		if wait <= 0 {
			return nil
		}
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		g.mu.Lock()
	}
}

// release schedules the next request delay from now and frees the gate.
func (g *keyGate) release(delay time.Duration) {
	g.readyAt = time.Now().Add(delay)
	g.mu.Unlock()
}
