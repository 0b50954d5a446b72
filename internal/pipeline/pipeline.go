// Package pipeline runs ingestion cycles: fetch every source, classify and
// attribute each item, dedupe, update the registry, persist and alert.
package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fda-watch/internal/classify"
	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/extract"
	"github.com/sells-group/fda-watch/internal/fetcher"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/notify"
	"github.com/sells-group/fda-watch/internal/registry"
	"github.com/sells-group/fda-watch/internal/store"
	"github.com/sells-group/fda-watch/internal/summarize"
)

// ErrCycleInProgress is returned when a cycle is requested while one runs.
var ErrCycleInProgress = eris.New("pipeline: cycle already in progress")

// Enricher attaches contacts to newly created companies.
type Enricher interface {
	EnrichAll(ctx context.Context, names []string) int
}

// Deps are the collaborators of a Pipeline. Store, Notifier, Summarizer
// and Enricher are optional.
type Deps struct {
	Sources    []fetcher.Source
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Registry   *registry.Registry
	Store      store.Store
	Notifier   notify.Notifier
	Summarizer summarize.Summarizer
	Enricher   Enricher
}

// Pipeline owns the cycle guard and the set of items already seen.
type Pipeline struct {
	cfg  config.FetchConfig
	deps Deps
	now  func() time.Time

	running atomic.Bool

	mu   sync.RWMutex
	seen map[string]string // item dedup key -> item ID
	last *model.CycleResult
}

// New creates a Pipeline.
func New(cfg config.FetchConfig, deps Deps) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.New()
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
		seen: make(map[string]string),
	}
}

// Registry returns the registry the pipeline writes to.
func (p *Pipeline) Registry() *registry.Registry { return p.deps.Registry }

// Running reports whether a cycle is in progress.
func (p *Pipeline) Running() bool { return p.running.Load() }

// LastResult returns the most recent cycle result, or nil.
func (p *Pipeline) LastResult() *model.CycleResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Init restores the registry and the seen-item set from the store.
func (p *Pipeline) Init(ctx context.Context) error {
	if p.deps.Store == nil {
		return nil
	}
	snap, err := p.deps.Store.LoadSnapshot(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: load registry snapshot")
	}
	if snap != nil {
		p.deps.Registry.Restore(*snap)
		p.deps.Registry.RescoreAll()
	}

	items, err := p.deps.Store.LoadItems(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: load items")
	}
	p.mu.Lock()
	for _, it := range items {
		if k := it.DedupKey(); k != "" {
			p.seen[k] = it.ID
		}
	}
	p.mu.Unlock()

	zap.L().Info("pipeline: state restored",
		zap.Int("companies", p.deps.Registry.Len()),
		zap.Int("items", len(items)),
	)
	return nil
}

// RunCycle runs one ingestion cycle. A persistence failure is returned
// together with the complete result. In-memory state is kept and the
// unsaved items are written again on the next cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (*model.CycleResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer p.running.Store(false)

	start := p.now()
	log := zap.L().With(zap.Time("cycle_start", start))
	log.Info("pipeline: cycle starting", zap.Int("sources", len(p.deps.Sources)))

	raw, failed := p.fetchAll(ctx)
	items := p.process(raw)
	unique := Dedupe(items)
	p.assignIDs(unique)
	fresh := p.unseen(unique)
	p.summarize(ctx, unique, fresh)

	result := &model.CycleResult{
		TotalItems:    len(raw),
		UniqueItems:   len(unique),
		SourcesFailed: failed,
		StartedAt:     start,
	}
	var created []string
	for i := range unique {
		res := p.deps.Registry.Upsert(unique[i])
		if res.Canonical != "" {
			unique[i].Company = res.Canonical
		}
		if res.Created {
			created = append(created, res.Canonical)
		}
		if res.IsNew {
			result.New = append(result.New, model.NewViolation{Company: res.Canonical, Violation: res.Violation})
		}
	}
	result.NewViolations = len(result.New)
	result.CompaniesCreated = len(created)
	result.CompaniesTracked = p.deps.Registry.Len()

	persistErr := p.persist(ctx, pick(unique, fresh))
	if persistErr == nil {
		p.markSeen(unique)
	}

	if len(result.New) > 0 {
		if err := p.deps.Notifier.Notify(ctx, result.New); err != nil {
			log.Warn("pipeline: notification failed", zap.Error(err))
		}
	}

	if p.deps.Enricher != nil && len(created) > 0 {
		if n := p.deps.Enricher.EnrichAll(ctx, created); n > 0 && persistErr == nil {
			persistErr = p.saveSnapshot(ctx)
		}
	}

	result.Duration = p.now().Sub(start)
	p.mu.Lock()
	p.last = result
	p.mu.Unlock()

	log.Info("pipeline: cycle complete",
		zap.Int("total_items", result.TotalItems),
		zap.Int("unique_items", result.UniqueItems),
		zap.Int("new_violations", result.NewViolations),
		zap.Int("companies_tracked", result.CompaniesTracked),
		zap.Int("companies_created", result.CompaniesCreated),
		zap.Strings("sources_failed", result.SourcesFailed),
		zap.Duration("duration", result.Duration),
	)

	if persistErr != nil {
		log.Error("pipeline: persist failed", zap.Error(persistErr))
		return result, persistErr
	}
	return result, nil
}

// fetchAll fetches every source concurrently, each under its own timeout.
// Items come back in source order; failed source names are returned.
func (p *Pipeline) fetchAll(ctx context.Context) ([]model.RawItem, []string) {
	perSource := make([][]model.RawItem, len(p.deps.Sources))
	errs := make([]error, len(p.deps.Sources))
	timeout := time.Duration(p.cfg.TimeoutSecs) * time.Second

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrent)
	for i, src := range p.deps.Sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			items, err := src.Fetch(sctx)
			if err != nil {
				errs[i] = err
				zap.L().Warn("pipeline: source failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				return nil
			}
			perSource[i] = items
			zap.L().Debug("pipeline: source fetched",
				zap.String("source", src.Name()),
				zap.Int("items", len(items)),
			)
			return nil
		})
	}
	_ = g.Wait()

	var (
		all    []model.RawItem
		failed []string
	)
	for i, src := range p.deps.Sources {
		if errs[i] != nil {
			failed = append(failed, src.Name())
			continue
		}
		all = append(all, perSource[i]...)
	}
	return all, failed
}

// process classifies and attributes raw items in parallel. Output order
// matches input order.
func (p *Pipeline) process(raw []model.RawItem) []model.RegulatoryItem {
	out := make([]model.RegulatoryItem, len(raw))
	memo := extract.NewMemo(p.deps.Extractor)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range raw {
		g.Go(func() error {
			out[i] = buildItem(raw[i], p.deps.Classifier, memo)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func buildItem(r model.RawItem, c *classify.Classifier, memo *extract.Memo) model.RegulatoryItem {
	cls := c.Classify(r.Title, r.Body)
	return model.RegulatoryItem{
		Title:          r.Title,
		Link:           r.Link,
		Body:           r.Body,
		RawCompanyText: memo.Extract(r.Title, r.Body, r.Link),
		Date:           r.Date,
		Source:         r.Source,
		SourceCategory: r.SourceCategory,
		Types:          cls.Types,
		Severity:       cls.Severity,
	}
}

// Dedupe keeps the first item for each dedup key. Items with neither a
// link nor a title are dropped.
func Dedupe(items []model.RegulatoryItem) []model.RegulatoryItem {
	seen := make(map[string]bool, len(items))
	out := make([]model.RegulatoryItem, 0, len(items))
	for _, it := range items {
		k := it.DedupKey()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

// assignIDs reuses the ID of a previously stored item and otherwise
// derives a name-based UUID from the dedup key, so an item keeps its ID
// across cycles even when an earlier write failed.
func (p *Pipeline) assignIDs(items []model.RegulatoryItem) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := range items {
		key := items[i].DedupKey()
		if id := p.seen[key]; id != "" {
			items[i].ID = id
			continue
		}
		items[i].ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
	}
}

// unseen returns the indexes of items not seen in an earlier cycle. Only
// these are summarized and written.
func (p *Pipeline) unseen(items []model.RegulatoryItem) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var idx []int
	for i, it := range items {
		if _, ok := p.seen[it.DedupKey()]; !ok {
			idx = append(idx, i)
		}
	}
	return idx
}

func pick(items []model.RegulatoryItem, idx []int) []model.RegulatoryItem {
	out := make([]model.RegulatoryItem, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

func (p *Pipeline) summarize(ctx context.Context, items []model.RegulatoryItem, idx []int) {
	if p.deps.Summarizer == nil || len(idx) == 0 {
		return
	}
	n := summarize.All(ctx, p.deps.Summarizer, items, idx, p.cfg.MaxConcurrent)
	zap.L().Debug("pipeline: summarized", zap.Int("requested", len(idx)), zap.Int("written", n))
}

func (p *Pipeline) markSeen(items []model.RegulatoryItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range items {
		p.seen[it.DedupKey()] = it.ID
	}
}

func (p *Pipeline) persist(ctx context.Context, items []model.RegulatoryItem) error {
	if p.deps.Store == nil {
		return nil
	}
	if len(items) == 0 {
		return p.saveSnapshot(ctx)
	}
	if err := p.deps.Store.SaveItems(ctx, items); err != nil {
		return eris.Wrap(err, "pipeline: save items")
	}
	return p.saveSnapshot(ctx)
}

func (p *Pipeline) saveSnapshot(ctx context.Context) error {
	if p.deps.Store == nil {
		return nil
	}
	snap := p.deps.Registry.Snapshot()
	snap.SavedAt = p.now()
	return eris.Wrap(p.deps.Store.SaveSnapshot(ctx, snap), "pipeline: save registry snapshot")
}
