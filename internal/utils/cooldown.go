package utils

import (
	"sync"
	"time"
)

// CooldownGate grants at most one pass per key per window. The clock for a
// key advances only when a pass is granted, so a steady stream of denied
// attempts cannot starve the key.
type CooldownGate struct {
	mu      sync.Mutex
	window  time.Duration
	granted map[string]time.Time
}

func NewCooldownGate(window time.Duration) *CooldownGate {
	return &CooldownGate{window: window, granted: make(map[string]time.Time)}
}

func (g *CooldownGate) Allow(key string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.granted[key]
	if seen && now.Sub(last) < g.window {
		return false
	}
	g.granted[key] = now
	return true
}
