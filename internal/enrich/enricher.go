package enrich

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/resilience"
)

// Target is the part of the company registry the enricher writes to.
type Target interface {
	Get(name string) (model.Company, bool)
	AttachContacts(name string, contacts []model.Contact) bool
	SetDomain(name, domain string) bool
}

// ErrNoContacts is returned when every provider missed.
var ErrNoContacts = eris.New("enrich: no provider returned contacts")

// Enricher walks providers in order, each behind its own circuit breaker.
type Enricher struct {
	providers   *Registry
	breakers    *resilience.Breakers
	target      Target
	concurrency int
}

// NewEnricher creates an Enricher writing into target.
func NewEnricher(providers *Registry, target Target, breakers *resilience.Breakers) *Enricher {
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig())
	}
	return &Enricher{providers: providers, breakers: breakers, target: target, concurrency: 4}
}

// FromConfig registers every provider cfg enables. It returns nil when
// none is configured.
func FromConfig(cfg config.EnrichConfig, target Target) *Enricher {
	reg := NewRegistry()
	if cfg.HunterKey != "" {
		reg.Register(NewHunterProvider(cfg))
	}
	if reg.Len() == 0 {
		return nil
	}
	return NewEnricher(reg, target, nil)
}

// Breakers exposes provider breaker state.
func (e *Enricher) Breakers() *resilience.Breakers { return e.breakers }

// Enrich looks up contacts for one company and attaches the first
// non-empty result. A provider error or open breaker moves on to the next
// provider.
func (e *Enricher) Enrich(ctx context.Context, name string) (*Result, error) {
	c, ok := e.target.Get(name)
	if !ok {
		return nil, eris.Errorf("enrich: unknown company %q", name)
	}
	q := Lookup{Name: c.CanonicalName, Domain: c.Domain}

	var errs []error
	for _, p := range e.providers.Ordered() {
		res, err := resilience.Call(ctx, e.breakers.Get(p.Name()), func(ctx context.Context) (*Result, error) {
			return p.FindContacts(ctx, q)
		})
		if err != nil {
			zap.L().Warn("enrich: provider failed",
				zap.String("provider", p.Name()),
				zap.String("company", q.Name),
				zap.Error(err),
			)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res == nil || len(res.Contacts) == 0 {
			continue
		}

		if res.Domain != "" {
			e.target.SetDomain(c.CanonicalName, res.Domain)
		}
		e.target.AttachContacts(c.CanonicalName, res.Contacts)
		zap.L().Info("enrich: contacts attached",
			zap.String("provider", p.Name()),
			zap.String("company", c.CanonicalName),
			zap.Int("contacts", len(res.Contacts)),
		)
		return res, nil
	}

	if len(errs) > 0 {
		return nil, eris.Wrap(errors.Join(errs...), "enrich: all providers failed")
	}
	return nil, ErrNoContacts
}

// EnrichAll enriches names concurrently and returns how many got contacts.
// Individual failures are logged, not returned.
func (e *Enricher) EnrichAll(ctx context.Context, names []string) int {
	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, name := range names {
		g.Go(func() error {
			if _, err := e.Enrich(gctx, name); err != nil {
				if !errors.Is(err, ErrNoContacts) {
					zap.L().Debug("enrich: skipped", zap.String("company", name), zap.Error(err))
				}
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(done.Load())
}
