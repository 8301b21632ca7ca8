package app

import (
	"sync"

	"hostel_finder/internal/domain"
)

// inFlight rejects a second concurrent operation on the same key.
type inFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInFlight() *inFlight { return &inFlight{keys: map[string]struct{}{}} }

// acquire returns a release func, or domain.ErrInFlight when key is busy.
func (g *inFlight) acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.keys[key]; busy {
		return nil, domain.ErrInFlight
	}
	g.keys[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.keys, key)
		g.mu.Unlock()
	}, nil
}
