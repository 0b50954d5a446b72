// Package extract derives a best-guess company name from an item's title,
// body and source URL.
package extract

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/model"
)

// Extractor runs an ordered chain of strategies; the first plausible
// candidate wins. Safe for concurrent use.
type Extractor struct {
	strategies []Strategy
}

// New creates an Extractor with the default chain: url, title, body,
// known-company mention (when knownNames is non-empty), proper noun.
func New(knownNames []string) *Extractor {
	chain := []Strategy{URLStrategy(), TitleStrategy(), BodyStrategy()}
	if len(knownNames) > 0 {
		chain = append(chain, KnownStrategy(knownNames))
	}
	chain = append(chain, ProperNounStrategy())
	return &Extractor{strategies: chain}
}

// NewWithStrategies creates an Extractor with a custom chain.
func NewWithStrategies(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// Extract returns the raw company name, or model.UnknownCompany.
func (e *Extractor) Extract(title, body, sourceURL string) string {
	name, _ := e.ExtractDetail(title, body, sourceURL)
	return name
}

// ExtractDetail also returns the name of the strategy that matched, or ""
// for the sentinel.
func (e *Extractor) ExtractDetail(title, body, sourceURL string) (string, string) {
	in := Input{Title: CleanTitle(title), Body: body, URL: sourceURL}
	for _, s := range e.strategies {
		c, ok := s.Find(in)
		if !ok {
			continue
		}
		c = tidy(c)
		if !IsPlausibleName(c) {
			continue
		}
		return c, s.Name
	}
	zap.L().Debug("extract: no company found", zap.String("title", title))
	return model.UnknownCompany, ""
}

type memoKey struct {
	title string
	link  string
}

// Memo caches extraction results by (title, link) for one ingestion run.
// Safe for concurrent use.
type Memo struct {
	ex *Extractor

	mu    sync.RWMutex
	cache map[memoKey]string
}

// NewMemo wraps ex with a cache.
func NewMemo(ex *Extractor) *Memo {
	return &Memo{ex: ex, cache: make(map[memoKey]string)}
}

// Extract returns the cached result for (title, sourceURL) or computes it.
func (m *Memo) Extract(title, body, sourceURL string) string {
	k := memoKey{title: title, link: model.CleanLink(sourceURL)}

	m.mu.RLock()
	v, ok := m.cache[k]
	m.mu.RUnlock()
	if ok {
		return v
	}

	v = m.ex.Extract(title, body, sourceURL)
	m.mu.Lock()
	m.cache[k] = v
	m.mu.Unlock()
	return v
}

// Len returns the number of cached entries.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}
