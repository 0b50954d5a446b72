package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fda-watch/internal/model"
)

// MemoryStore keeps everything in process. Values are stored as JSON so
// callers never share memory with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string][]byte
	snapshot []byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) SaveItems(_ context.Context, items []model.RegulatoryItem) error {
	rows, err := itemRows(items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.items[r.key] = r.data
	}
	return nil
}

func (m *MemoryStore) LoadItems(context.Context) ([]model.RegulatoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RegulatoryItem, 0, len(m.items))
	for key, data := range m.items {
		var it model.RegulatoryItem
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, eris.Wrapf(err, "memory: unmarshal item %s", key)
		}
		out = append(out, it)
	}
	sortItems(out)
	return out, nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap model.RegistrySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "memory: marshal snapshot")
	}
	m.mu.Lock()
	m.snapshot = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LoadSnapshot(context.Context) (*model.RegistrySnapshot, error) {
	m.mu.RLock()
	data := m.snapshot
	m.mu.RUnlock()
	if data == nil {
		return nil, nil
	}
	var snap model.RegistrySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal snapshot")
	}
	return &snap, nil
}

func (m *MemoryStore) Close() error { return nil }
