package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/fda-watch/internal/model"
)

// fakeSource returns fixed items or an error.
type fakeSource struct {
	name  string
	items []model.RawItem
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) ([]model.RawItem, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.RawItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

// blockingSource blocks in Fetch until release is closed.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSource() *blockingSource {
	return &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MockStore is a mock implementation of store.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) SaveItems(ctx context.Context, items []model.RegulatoryItem) error {
	return m.Called(ctx, items).Error(0)
}

func (m *MockStore) LoadItems(ctx context.Context) ([]model.RegulatoryItem, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]model.RegulatoryItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) SaveSnapshot(ctx context.Context, snap model.RegistrySnapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *MockStore) LoadSnapshot(ctx context.Context) (*model.RegistrySnapshot, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*model.RegistrySnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

// recordingNotifier keeps every batch it is handed.
type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]model.NewViolation
}

func (r *recordingNotifier) Notify(_ context.Context, nv []model.NewViolation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, nv)
	return nil
}

// countingSummarizer summarizes every item as "summary of <title>".
type countingSummarizer struct {
	calls atomic.Int32
}

func (c *countingSummarizer) Summarize(_ context.Context, it model.RegulatoryItem) (string, error) {
	c.calls.Add(1)
	return "summary of " + it.Title, nil
}

// fakeEnricher records the names it is asked to enrich.
type fakeEnricher struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeEnricher) EnrichAll(_ context.Context, names []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, names...)
	return len(names)
}
