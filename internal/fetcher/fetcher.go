// Package fetcher pulls raw regulatory items from RSS/Atom feeds and the FDA
// warning-letter page.
package fetcher

import (
	"context"
	"io"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
)

// Source yields the current items of one upstream. A failing source is
// skipped by the pipeline; it never aborts a cycle.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// Getter downloads a URL. The caller closes the body.
type Getter interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// ConditionalGetter is a Getter that can skip unchanged resources by ETag.
// changed is false (and body nil) when the server answered 304.
type ConditionalGetter interface {
	Getter
	GetIfChanged(ctx context.Context, url, etag string) (body io.ReadCloser, newETag string, changed bool, err error)
}

// FromConfig builds the configured sources in fetch order: the FDA page
// first, then feeds as listed.
func FromConfig(cfg config.SourcesConfig, g Getter) []Source {
	var out []Source
	if cfg.FDAPage.Enabled && cfg.FDAPage.URL != "" {
		out = append(out, NewFDAPageSource(cfg.FDAPage.URL, g))
	}
	for _, f := range cfg.Feeds {
		cat := model.SourceCategory(f.Category)
		if !cat.Valid() {
			cat = model.CategoryTrade
		}
		out = append(out, NewRSSSource(f.Name, f.URL, cat, g))
	}
	return out
}
