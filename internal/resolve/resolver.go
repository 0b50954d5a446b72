package resolve

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Defaults for the fuzzy pass.
const (
	DefaultFuzzyThreshold = 0.85
	DefaultMinFuzzyKeyLen = 4
)

// Method names the resolution pass that produced a canonical name.
type Method string

const (
	MethodSentinel  Method = "sentinel"
	MethodKnown     Method = "known"
	MethodAlias     Method = "alias"
	MethodCanonical Method = "canonical"
	MethodFuzzy     Method = "fuzzy"
	MethodNew       Method = "new"
)

// Resolution describes how a raw name was resolved.
type Resolution struct {
	Raw        string  `json:"raw"`
	Normalized string  `json:"normalized"`
	Key        string  `json:"key"`
	Canonical  string  `json:"canonical"`
	Method     Method  `json:"method"`
	Score      float64 `json:"score,omitempty"`
	Domain     string  `json:"domain,omitempty"`
	Ticker     string  `json:"ticker,omitempty"`
}

var sentinels = map[string]bool{
	"":                true,
	"unknown company": true,
	"unknown":         true,
	"tbd":             true,
	"n/a":             true,
	"na":              true,
	"none":            true,
}

// IsSentinel reports whether name is a placeholder that must never become a
// company identity.
func IsSentinel(name string) bool {
	return sentinels[strings.ToLower(strings.TrimSpace(name))]
}

// Resolver maps raw names to canonical identities. Resolution reads state
// but never mutates it; callers register outcomes with AddCanonical and
// Learn. Safe for concurrent use.
type Resolver struct {
	known     *KnownTable
	knownKeys map[string]string
	aliases   *AliasIndex
	sim       Similarity
	threshold float64
	minKeyLen int

	mu        sync.RWMutex
	canonical map[string]string // match key -> canonical name
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKnown sets the known-company table.
func WithKnown(t *KnownTable) Option { return func(r *Resolver) { r.known = t } }

// WithAliasIndex shares an alias index with the resolver.
func WithAliasIndex(a *AliasIndex) Option { return func(r *Resolver) { r.aliases = a } }

// WithSimilarity sets the fuzzy similarity.
func WithSimilarity(s Similarity) Option { return func(r *Resolver) { r.sim = s } }

// WithFuzzyThreshold sets the minimum similarity for a fuzzy match.
func WithFuzzyThreshold(v float64) Option {
	return func(r *Resolver) {
		if v > 0 && v <= 1 {
			r.threshold = v
		}
	}
}

// WithMinFuzzyKeyLen sets the shortest key eligible for fuzzy matching.
func WithMinFuzzyKeyLen(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.minKeyLen = n
		}
	}
}

// NewResolver creates a resolver with the embedded known table, an empty
// alias index and Levenshtein similarity unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		sim:       Levenshtein,
		threshold: DefaultFuzzyThreshold,
		minKeyLen: DefaultMinFuzzyKeyLen,
		canonical: make(map[string]string),
	}
	for _, o := range opts {
		o(r)
	}
	if r.known == nil {
		r.known = DefaultKnown()
	}
	if r.aliases == nil {
		r.aliases = NewAliasIndex()
	}
	r.knownKeys = r.known.keys()
	return r
}

// Aliases returns the resolver's alias index.
func (r *Resolver) Aliases() *AliasIndex { return r.aliases }

// Known returns the known-company table.
func (r *Resolver) Known() *KnownTable { return r.known }

// Resolve returns the canonical name for raw. Sentinels pass through
// unchanged (trimmed).
func (r *Resolver) Resolve(raw string) string {
	return r.ResolveDetail(raw).Canonical
}

// ResolveDetail runs the resolution cascade:
//  1. Sentinel pass-through
//  2. Known-company table
//  3. Alias index
//  4. Exact match key of an existing canonical name
//  5. Fuzzy match above the threshold
//  6. Title-cased normalized name as a new identity
func (r *Resolver) ResolveDetail(raw string) Resolution {
	trimmed := strings.TrimSpace(raw)
	res := Resolution{Raw: raw}
	if IsSentinel(trimmed) {
		res.Canonical = trimmed
		res.Method = MethodSentinel
		return res
	}

	res.Normalized = Normalize(trimmed)
	res.Key = MatchKey(res.Normalized)
	if res.Key == "" {
		res.Canonical = trimmed
		res.Method = MethodSentinel
		return res
	}

	// Pass 1: known table, by suffix-stripped key then by the plain key.
	for _, k := range []string{res.Key, MatchKey(trimmed)} {
		if kc, ok := r.known.Lookup(k); ok {
			res.Canonical = kc.Name
			res.Method = MethodKnown
			res.Domain = kc.Domain
			res.Ticker = kc.Ticker
			return res
		}
	}

	// Pass 2: learned aliases.
	if c, ok := r.aliases.Get(res.Key); ok {
		res.Canonical = c
		res.Method = MethodAlias
		return res
	}

	r.mu.RLock()
	c, ok := r.canonical[res.Key]
	r.mu.RUnlock()
	if ok {
		res.Canonical = c
		res.Method = MethodCanonical
		return res
	}

	// Pass 3: fuzzy.
	if best, score, ok := r.fuzzy(res.Key); ok {
		zap.L().Debug("resolve: fuzzy match",
			zap.String("raw", raw),
			zap.String("canonical", best),
			zap.Float64("score", score),
		)
		res.Canonical = best
		res.Method = MethodFuzzy
		res.Score = score
		if kc, ok := r.known.ByName(best); ok {
			res.Domain = kc.Domain
			res.Ticker = kc.Ticker
		}
		return res
	}

	res.Canonical = TitleCase(res.Normalized)
	res.Method = MethodNew
	return res
}

func (r *Resolver) fuzzy(key string) (string, float64, bool) {
	if len([]rune(key)) < r.minKeyLen {
		return "", 0, false
	}

	var (
		best      string
		bestScore float64
	)
	consider := func(k, name string) {
		if len([]rune(k)) < r.minKeyLen {
			return
		}
		s := r.sim.Score(key, k)
		if s < r.threshold {
			return
		}
		if s > bestScore || (s == bestScore && name < best) {
			best, bestScore = name, s
		}
	}

	r.mu.RLock()
	for k, name := range r.canonical {
		consider(k, name)
	}
	r.mu.RUnlock()
	for k, name := range r.knownKeys {
		consider(k, name)
	}

	return best, bestScore, best != ""
}

// AddCanonical registers name as an existing identity so later variants
// resolve to it by exact key or fuzzy match.
func (r *Resolver) AddCanonical(name string) {
	if IsSentinel(name) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range []string{Key(name), MatchKey(name)} {
		if k == "" {
			continue
		}
		if _, ok := r.canonical[k]; !ok {
			r.canonical[k] = name
		}
	}
}

// Learn records raw as an alias of canonical. It returns false when raw is
// a sentinel or its key already belongs to another canonical name.
func (r *Resolver) Learn(raw, canonical string) bool {
	if IsSentinel(raw) || IsSentinel(canonical) {
		return false
	}
	return r.aliases.Set(Key(raw), canonical)
}

// Reset forgets all canonical identities and aliases.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.canonical = make(map[string]string)
	r.mu.Unlock()
	r.aliases.Replace(nil)
}
