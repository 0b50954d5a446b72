// Package enrich attaches contacts and domains to tracked companies by
// querying contact providers in order until one answers.
package enrich

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/fda-watch/internal/model"
)

// Lookup identifies the company being enriched.
type Lookup struct {
	Name   string
	Domain string
}

// Result is what a provider found. An empty Contacts slice is a miss.
type Result struct {
	Provider string          `json:"provider"`
	Domain   string          `json:"domain,omitempty"`
	Contacts []model.Contact `json:"contacts"`
}

// Provider is a contact source.
type Provider interface {
	Name() string
	FindContacts(ctx context.Context, q Lookup) (*Result, error)
}

// Registry holds providers in registration order.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p, replacing any provider of the same name in place.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// Ordered returns the providers in registration order.
func (r *Registry) Ordered() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.providers[n])
	}
	return out
}

// List returns registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
