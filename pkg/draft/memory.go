package draft

import "sync"

// MemoryBackend keeps drafts in a map for the lifetime of the process.
type MemoryBackend struct {
	mu     sync.RWMutex
	drafts map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{drafts: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.drafts[key]
	return text, ok, nil
}

func (m *MemoryBackend) Put(key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[key] = text
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, key)
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
