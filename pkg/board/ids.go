package board

import "sync"

// IDGenerator issues item IDs that never collide within a process: every ID
// is greater than every ID observed or issued before it.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
}

// Observe records existing IDs so later Next calls stay above them.
func (g *IDGenerator) Observe(ids ...int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		if id > g.last {
			g.last = id
		}
	}
}

// Next returns a fresh ID.
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last++
	return g.last
}
