package fetcher

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/model"
)

const maxFeedBytes = 10 << 20

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Content     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
	DCDate      string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	ID        string     `xml:"id"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// RSSSource reads an RSS 2.0 or Atom feed. When its Getter supports
// conditional requests, an unchanged feed returns the previous items.
type RSSSource struct {
	name     string
	url      string
	category model.SourceCategory
	getter   Getter

	mu     sync.Mutex
	etag   string
	cached []model.RawItem
}

// NewRSSSource creates a feed source.
func NewRSSSource(name, url string, category model.SourceCategory, g Getter) *RSSSource {
	return &RSSSource{name: name, url: url, category: category, getter: g}
}

// Name returns the configured feed name.
func (s *RSSSource) Name() string { return s.name }

// Fetch downloads and parses the feed.
func (s *RSSSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	var (
		body io.ReadCloser
		etag string
		err  error
	)
	if cg, ok := s.getter.(ConditionalGetter); ok {
		s.mu.Lock()
		prev := s.etag
		s.mu.Unlock()

		var changed bool
		body, etag, changed, err = cg.GetIfChanged(ctx, s.url, prev)
		if err != nil {
			return nil, eris.Wrapf(err, "rss: fetch %s", s.name)
		}
		if !changed {
			s.mu.Lock()
			defer s.mu.Unlock()
			zap.L().Debug("rss: feed unchanged", zap.String("source", s.name))
			return append([]model.RawItem(nil), s.cached...), nil
		}
	} else {
		body, err = s.getter.Get(ctx, s.url)
		if err != nil {
			return nil, eris.Wrapf(err, "rss: fetch %s", s.name)
		}
	}
	defer body.Close() //nolint:errcheck

	items, err := ParseFeed(ctx, body, s.name, s.category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.etag = etag
	s.cached = append([]model.RawItem(nil), items...)
	s.mu.Unlock()
	return items, nil
}

// ParseFeed parses an RSS 2.0 or Atom document into raw items.
func ParseFeed(ctx context.Context, r io.Reader, source string, category model.SourceCategory) ([]model.RawItem, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFeedBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "rss: read %s", source)
	}

	var items []model.RawItem
	if isAtom(data) {
		entries, errc := StreamXML[atomEntry](ctx, bytes.NewReader(data), "entry")
		for e := range entries {
			date := parseFeedDate(e.Published)
			if date.IsZero() {
				date = parseFeedDate(e.Updated)
			}
			body := e.Summary
			if body == "" {
				body = e.Content
			}
			items = append(items, rawItem(e.Title, e.link(), body, date, source, category))
		}
		err = <-errc
	} else {
		entries, errc := StreamXML[rssItem](ctx, bytes.NewReader(data), "item")
		for e := range entries {
			link := e.Link
			if link == "" && strings.HasPrefix(e.GUID, "http") {
				link = e.GUID
			}
			date := parseFeedDate(e.PubDate)
			if date.IsZero() {
				date = parseFeedDate(e.DCDate)
			}
			body := e.Description
			if body == "" {
				body = e.Content
			}
			items = append(items, rawItem(e.Title, link, body, date, source, category))
		}
		err = <-errc
	}
	if err != nil {
		return nil, eris.Wrapf(err, "rss: parse %s", source)
	}
	return items, nil
}

func isAtom(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(head, []byte("<feed")) && !bytes.Contains(head, []byte("<rss"))
}

func rawItem(title, link, body string, date time.Time, source string, category model.SourceCategory) model.RawItem {
	title = HTMLText(title)
	if category == model.CategoryGoogle {
		title = stripPublisher(title)
	}
	return model.RawItem{
		Title:          title,
		Link:           strings.TrimSpace(link),
		Body:           HTMLText(body),
		Date:           date,
		Source:         source,
		SourceCategory: category,
	}
}

var publisherSuffixRe = regexp.MustCompile(`\s+[-–—|]\s+[^-–—|]{2,60}$`)

// stripPublisher removes the " - Publisher" tail news aggregators append
// to headlines.
func stripPublisher(title string) string {
	if loc := publisherSuffixRe.FindStringIndex(title); loc != nil && loc[0] > 10 {
		return strings.TrimSpace(title[:loc[0]])
	}
	return title
}

var spaceRe = regexp.MustCompile(`\s+`)

// HTMLText converts an HTML fragment to plain text with collapsed
// whitespace. Plain text passes through trimmed.
func HTMLText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			s = doc.Text()
		}
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
}

// parseFeedDate tries the date formats seen in feeds and on FDA pages. An
// unparseable date yields the zero time.
func parseFeedDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
