package chat

import (
	"sync"
	"time"
)

// idSource issues time-based message ids that strictly increase within a
// client, even when the clock stalls or steps backwards.
type idSource struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func (s *idSource) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

func (s *idSource) observe(id int64) {
	s.mu.Lock()
	if id > s.last {
		s.last = id
	}
	s.mu.Unlock()
}
