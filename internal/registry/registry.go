// Package registry holds the canonical company map, each company's
// violation history and the derived scores.
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/resolve"
	"github.com/sells-group/fda-watch/internal/scorer"
)

// UpsertResult reports what an upsert changed.
type UpsertResult struct {
	Canonical string `json:"canonical"`
	IsNew     bool   `json:"is_new"`  // a violation was added
	Created   bool   `json:"created"` // the company did not exist before

	Violation model.Violation `json:"-"` // the recorded violation when IsNew
}

// Registry is the single source of truth for companies. All mutation goes
// through the registry mutex; callers apply upserts sequentially.
type Registry struct {
	resolver *resolve.Resolver
	cfg      config.RegistryConfig
	risk     config.RiskConfig
	now      func() time.Time

	mu        sync.RWMutex
	companies map[string]*model.Company
	links     map[string]string // violation dedup key -> canonical name
}

// New creates an empty registry.
func New(resolver *resolve.Resolver, cfg config.RegistryConfig, risk config.RiskConfig) *Registry {
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = 100
	}
	if cfg.HotspotWindowDays <= 0 {
		cfg.HotspotWindowDays = 90
	}
	if cfg.HotspotMin < 2 {
		cfg.HotspotMin = 2
	}
	if cfg.RepeatOffenderMin < 2 {
		cfg.RepeatOffenderMin = 3
	}
	return &Registry{
		resolver:  resolver,
		cfg:       cfg,
		risk:      risk,
		now:       time.Now,
		companies: make(map[string]*model.Company),
		links:     make(map[string]string),
	}
}

// Resolver returns the resolver the registry registers identities with.
func (r *Registry) Resolver() *resolve.Resolver { return r.resolver }

// UpsertViolation records item against its company and reports whether a
// new violation was added.
func (r *Registry) UpsertViolation(item model.RegulatoryItem) bool {
	return r.Upsert(item).IsNew
}

// Upsert resolves item.RawCompanyText, creates the company if unseen,
// learns the alias and appends a violation unless one with the same
// dedup key already exists. Sentinel names are a no-op.
func (r *Registry) Upsert(item model.RegulatoryItem) UpsertResult {
	raw := strings.TrimSpace(item.RawCompanyText)
	if resolve.IsSentinel(raw) {
		return UpsertResult{}
	}
	res := r.resolver.ResolveDetail(raw)
	if res.Method == resolve.MethodSentinel || resolve.IsSentinel(res.Canonical) {
		return UpsertResult{}
	}
	canonical := res.Canonical

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := UpsertResult{Canonical: canonical}

	c, ok := r.companies[canonical]
	if !ok {
		c = &model.Company{
			CanonicalName: canonical,
			Domain:        res.Domain,
			Ticker:        res.Ticker,
			FirstSeen:     now,
			LastUpdated:   now,
		}
		r.companies[canonical] = c
		r.resolver.AddCanonical(canonical)
		out.Created = true
		zap.L().Info("registry: new company",
			zap.String("canonical", canonical),
			zap.String("raw", raw),
			zap.String("method", string(res.Method)),
		)
	}

	r.resolver.Learn(raw, canonical)
	c.Aliases = addUnique(c.Aliases, raw)

	key := item.DedupKey()
	if key == "" {
		return out
	}
	for _, v := range c.Violations {
		if v.DedupKey() == key {
			return out
		}
	}

	v := model.ViolationFromItem(item)
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Date.IsZero() {
		v.Date = now
	}

	next, evicted := appendViolation(c.Violations, v, r.cfg.MaxViolations)
	for _, e := range evicted {
		delete(r.links, e.DedupKey())
	}
	c.Violations = next
	if !containsKey(next, key) {
		// Older than everything kept under the cap.
		return out
	}

	r.links[key] = canonical
	c.LastUpdated = now
	extractDetails(c, item)
	r.rescore(c, now)
	out.IsNew = true
	out.Violation = v
	return out
}

// appendViolation returns a new slice with v added, sorted newest first
// and capped at max. The input slice is not modified.
func appendViolation(vs []model.Violation, v model.Violation, max int) ([]model.Violation, []model.Violation) {
	next := make([]model.Violation, 0, len(vs)+1)
	next = append(next, vs...)
	next = append(next, v)
	sortViolations(next)
	if len(next) <= max {
		return next, nil
	}
	return next[:max:max], next[max:]
}

func sortViolations(vs []model.Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if !vs[i].Date.Equal(vs[j].Date) {
			return vs[i].Date.After(vs[j].Date)
		}
		return vs[i].Link < vs[j].Link
	})
}

func containsKey(vs []model.Violation, key string) bool {
	for _, v := range vs {
		if v.DedupKey() == key {
			return true
		}
	}
	return false
}

func (r *Registry) rescore(c *model.Company, now time.Time) {
	c.RiskScore = scorer.RiskScore(c.Violations, now, r.risk)
	c.ComplianceScore = scorer.ComplianceScore(c.Violations, now, r.risk)
}

// RescoreAll recomputes every company's scores as of now. Scores decay
// with time even when no new violations arrive.
func (r *Registry) RescoreAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, c := range r.companies {
		r.rescore(c, now)
	}
}

// Get returns a copy of the company with the given canonical name, falling
// back to resolving name.
func (r *Registry) Get(name string) (model.Company, bool) {
	canonical := r.resolver.Resolve(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[name]
	if !ok {
		c, ok = r.companies[canonical]
	}
	if !ok {
		return model.Company{}, false
	}
	return copyCompany(c), true
}

// Companies returns copies of every company, highest risk first.
func (r *Registry) Companies() []model.Company {
	r.mu.RLock()
	out := make([]model.Company, 0, len(r.companies))
	for _, c := range r.companies {
		out = append(out, copyCompany(c))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].CanonicalName < out[j].CanonicalName
	})
	return out
}

// Len returns the number of companies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.companies)
}

// TotalViolations returns the number of violations across all companies.
func (r *Registry) TotalViolations() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.companies {
		n += len(c.Violations)
	}
	return n
}

// HasLink reports whether any company already records a violation with
// this link.
func (r *Registry) HasLink(link string) bool {
	key := model.CleanLink(link)
	if key == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.links[key]
	return ok
}

// AttachContacts replaces the contacts of a company. It returns false if
// the company does not exist.
func (r *Registry) AttachContacts(name string, contacts []model.Contact) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[name]
	if !ok {
		return false
	}
	c.Contacts = append([]model.Contact(nil), contacts...)
	return true
}

// SetDomain records a company's web domain when it has none.
func (r *Registry) SetDomain(name, domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[name]
	if !ok || domain == "" || c.Domain != "" {
		return false
	}
	c.Domain = domain
	return true
}

// Snapshot returns the serializable registry state.
func (r *Registry) Snapshot() model.RegistrySnapshot {
	companies := r.Companies()
	sort.Slice(companies, func(i, j int) bool {
		return companies[i].CanonicalName < companies[j].CanonicalName
	})
	return model.RegistrySnapshot{
		Companies: companies,
		Aliases:   r.resolver.Aliases().Snapshot(),
		SavedAt:   r.now(),
	}
}

// Restore replaces the registry state with snap and re-registers every
// identity and alias with the resolver.
func (r *Registry) Restore(snap model.RegistrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolver.Reset()
	r.companies = make(map[string]*model.Company, len(snap.Companies))
	r.links = make(map[string]string)

	aliases := make(map[string]string, len(snap.Aliases))
	for k, v := range snap.Aliases {
		aliases[k] = v
	}

	for _, sc := range snap.Companies {
		if resolve.IsSentinel(sc.CanonicalName) {
			continue
		}
		c := copyCompany(&sc)
		sortViolations(c.Violations)
		if len(c.Violations) > r.cfg.MaxViolations {
			c.Violations = c.Violations[:r.cfg.MaxViolations]
		}
		r.companies[c.CanonicalName] = &c
		r.resolver.AddCanonical(c.CanonicalName)
		for _, v := range c.Violations {
			if k := v.DedupKey(); k != "" {
				r.links[k] = c.CanonicalName
			}
		}
		for _, a := range c.Aliases {
			if k := resolve.Key(a); k != "" {
				if _, ok := aliases[k]; !ok {
					aliases[k] = c.CanonicalName
				}
			}
		}
	}
	r.resolver.Aliases().Replace(aliases)

	zap.L().Info("registry: restored",
		zap.Int("companies", len(r.companies)),
		zap.Int("aliases", len(aliases)),
	)
}

func copyCompany(c *model.Company) model.Company {
	out := *c
	out.Aliases = append([]string(nil), c.Aliases...)
	out.Facilities = append([]string(nil), c.Facilities...)
	out.Products = append([]string(nil), c.Products...)
	out.Contacts = append([]model.Contact(nil), c.Contacts...)
	out.Violations = make([]model.Violation, len(c.Violations))
	for i, v := range c.Violations {
		v.Types = append([]model.ActionType(nil), v.Types...)
		out.Violations[i] = v
	}
	return out
}

func addUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
