package enrich

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/fda-watch/internal/model"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) FindContacts(ctx context.Context, q Lookup) (*Result, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

// fakeTarget is an in-memory Target.
type fakeTarget struct {
	mu        sync.Mutex
	companies map[string]model.Company
}

func newFakeTarget(names ...string) *fakeTarget {
	t := &fakeTarget{companies: make(map[string]model.Company)}
	for _, n := range names {
		t.companies[n] = model.Company{CanonicalName: n}
	}
	return t
}

func (t *fakeTarget) Get(name string) (model.Company, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.companies[name]
	return c, ok
}

func (t *fakeTarget) AttachContacts(name string, contacts []model.Contact) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.companies[name]
	if !ok {
		return false
	}
	c.Contacts = contacts
	t.companies[name] = c
	return true
}

func (t *fakeTarget) SetDomain(name, domain string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.companies[name]
	if !ok || c.Domain != "" {
		return false
	}
	c.Domain = domain
	t.companies[name] = c
	return true
}
