package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/classify"
	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/enrich"
	"github.com/sells-group/fda-watch/internal/extract"
	"github.com/sells-group/fda-watch/internal/fetcher"
	"github.com/sells-group/fda-watch/internal/notify"
	"github.com/sells-group/fda-watch/internal/pipeline"
	"github.com/sells-group/fda-watch/internal/registry"
	"github.com/sells-group/fda-watch/internal/resolve"
	"github.com/sells-group/fda-watch/internal/store"
	"github.com/sells-group/fda-watch/internal/summarize"
)

// appEnv holds everything the run/serve/patterns/export commands share.
type appEnv struct {
	Store      store.Store
	Registry   *registry.Registry
	Pipeline   *pipeline.Pipeline
	Enricher   *enrich.Enricher     // may be nil
	Summarizer summarize.Summarizer // may be nil
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// buildResolver configures the name resolver from c.Resolver.
func buildResolver(c config.ResolverConfig) (*resolve.Resolver, error) {
	known := resolve.DefaultKnown()
	if c.KnownCompaniesPath != "" {
		t, err := resolve.LoadKnown(c.KnownCompaniesPath)
		if err != nil {
			return nil, eris.Wrap(err, "load known companies")
		}
		known = t
	}
	opts := []resolve.Option{
		resolve.WithKnown(known),
		resolve.WithSimilarity(resolve.SimilarityByName(c.Similarity)),
	}
	if c.FuzzyThreshold > 0 {
		opts = append(opts, resolve.WithFuzzyThreshold(c.FuzzyThreshold))
	}
	if c.MinFuzzyKeyLen > 0 {
		opts = append(opts, resolve.WithMinFuzzyKeyLen(c.MinFuzzyKeyLen))
	}
	return resolve.NewResolver(opts...), nil
}

// initEnv opens the store, wires every collaborator and restores persisted
// state. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	resolver, err := buildResolver(c.Resolver)
	if err != nil {
		return nil, err
	}
	reg := registry.New(resolver, c.Registry, c.Risk)

	st, err := store.New(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	env := &appEnv{
		Store:      st,
		Registry:   reg,
		Enricher:   enrich.FromConfig(c.Enrich, reg),
		Summarizer: summarize.FromConfig(c.Anthropic),
	}

	getter := fetcher.NewHTTPFetcher(fetcher.OptionsFromConfig(c.Fetch))
	deps := pipeline.Deps{
		Sources:    fetcher.FromConfig(c.Sources, getter),
		Classifier: classify.New(),
		Extractor:  extract.New(resolver.Known().Mentions()),
		Registry:   reg,
		Store:      st,
		Notifier:   notify.FromConfig(c.Notify),
		Summarizer: env.Summarizer,
	}
	if env.Enricher != nil {
		deps.Enricher = env.Enricher
	}
	env.Pipeline = pipeline.New(c.Fetch, deps)

	if err := env.Pipeline.Init(ctx); err != nil {
		env.Close()
		return nil, err
	}

	zap.L().Debug("environment ready",
		zap.String("store", c.Store.Driver),
		zap.Int("sources", len(deps.Sources)),
		zap.Bool("enrich", env.Enricher != nil),
		zap.Bool("summarize", env.Summarizer != nil),
	)
	return env, nil
}
