package cache

import "sync"

// MediaIndex maps a part request path (e.g. /library/parts/1/2/file.mkv) to
// the absolute file path reported by the origin. Keys are compared verbatim.
// Entries are never removed.
type MediaIndex struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMediaIndex 创建空索引。
func NewMediaIndex() *MediaIndex {
	return &MediaIndex{files: make(map[string]string)}
}

// Put 无条件写入，同一 key 以最后一次写入为准。
func (m *MediaIndex) Put(key, file string) {
	m.mu.Lock()
	m.files[key] = file
	m.mu.Unlock()
}

// Get returns the file recorded for key.
func (m *MediaIndex) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[key]
	return file, ok
}

// Len returns the number of indexed parts.
func (m *MediaIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
