package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/fda-watch/internal/enrich"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/resilience"
)

// fakeCycler counts cycles and reports a configurable running state.
type fakeCycler struct {
	running atomic.Bool
	calls   atomic.Int32
	err     error

	mu   sync.Mutex
	last *model.CycleResult
}

func (f *fakeCycler) RunCycle(context.Context) (*model.CycleResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	res := &model.CycleResult{UniqueItems: 3, NewViolations: 1}
	f.mu.Lock()
	f.last = res
	f.mu.Unlock()
	return res, nil
}

func (f *fakeCycler) Running() bool { return f.running.Load() }

func (f *fakeCycler) LastResult() *model.CycleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// MockEnricher is a mock implementation of ContactEnricher.
type MockEnricher struct {
	mock.Mock
	breakers *resilience.Breakers
}

func (m *MockEnricher) Enrich(ctx context.Context, name string) (*enrich.Result, error) {
	args := m.Called(ctx, name)
	if v := args.Get(0); v != nil {
		return v.(*enrich.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEnricher) Breakers() *resilience.Breakers { return m.breakers }
