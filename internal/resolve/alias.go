package resolve

import "sync"

// AliasIndex maps match keys to canonical names. Each key maps to exactly
// one canonical name; the first mapping for a key is kept.
type AliasIndex struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewAliasIndex creates an empty index.
func NewAliasIndex() *AliasIndex {
	return &AliasIndex{m: make(map[string]string)}
}

// Get returns the canonical name for key.
func (a *AliasIndex) Get(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.m[key]
	return c, ok
}

// Set maps key to canonical. It returns false if key is empty or already
// maps to a different canonical name.
func (a *AliasIndex) Set(key, canonical string) bool {
	if key == "" || canonical == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.m[key]; ok {
		return cur == canonical
	}
	a.m[key] = canonical
	return true
}

// Len returns the number of keys.
func (a *AliasIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.m)
}

// Snapshot returns a copy of the index.
func (a *AliasIndex) Snapshot() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}

// Replace swaps the index contents for m.
func (a *AliasIndex) Replace(m map[string]string) {
	next := make(map[string]string, len(m))
	for k, v := range m {
		if k != "" && v != "" {
			next[k] = v
		}
	}
	a.mu.Lock()
	a.m = next
	a.mu.Unlock()
}
