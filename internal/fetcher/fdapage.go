package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fda-watch/internal/model"
)

// FDAPageName is the source name of the warning-letter page scrape.
const FDAPageName = "FDA Warning Letters"

// FDAPageSource scrapes the FDA warning-letter listing table. Each row
// becomes one item titled "<company> - Warning Letter" and linked to the
// letter itself.
type FDAPageSource struct {
	url    string
	getter Getter
}

// NewFDAPageSource creates the page source.
func NewFDAPageSource(pageURL string, g Getter) *FDAPageSource {
	return &FDAPageSource{url: pageURL, getter: g}
}

// Name returns FDAPageName.
func (s *FDAPageSource) Name() string { return FDAPageName }

// Fetch downloads and parses the listing.
func (s *FDAPageSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	body, err := s.getter.Get(ctx, s.url)
	if err != nil {
		return nil, eris.Wrap(err, "fdapage: fetch")
	}
	defer body.Close() //nolint:errcheck
	return ParseFDAPage(body, s.url)
}

type fdaColumns struct {
	posted, issued, company, office, subject int
}

// defaultColumns matches the published layout: Posted Date, Letter Issue
// Date, Company Name, Issuing Office, Subject.
var defaultColumns = fdaColumns{posted: 0, issued: 1, company: 2, office: 3, subject: 4}

func columnsFromHeader(doc *goquery.Selection) fdaColumns {
	cols := fdaColumns{posted: -1, issued: -1, company: -1, office: -1, subject: -1}
	doc.Find("thead th").Each(func(i int, th *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(th.Text()))
		switch {
		case strings.Contains(h, "posted"):
			cols.posted = i
		case strings.Contains(h, "issue"):
			if strings.Contains(h, "office") {
				cols.office = i
			} else {
				cols.issued = i
			}
		case strings.Contains(h, "company"), strings.Contains(h, "firm"):
			cols.company = i
		case strings.Contains(h, "office"):
			cols.office = i
		case strings.Contains(h, "subject"):
			cols.subject = i
		}
	})
	if cols.company < 0 {
		return defaultColumns
	}
	return cols
}

// ParseFDAPage parses the warning-letter table in an FDA listing page.
// Relative letter links are resolved against pageURL.
func ParseFDAPage(r io.Reader, pageURL string) ([]model.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "fdapage: parse html")
	}
	base, _ := url.Parse(pageURL)

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, eris.New("fdapage: no listing table found")
	}
	cols := columnsFromHeader(table)

	var items []model.RawItem
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		cell := func(i int) *goquery.Selection {
			if i < 0 || i >= cells.Length() {
				return &goquery.Selection{}
			}
			return cells.Eq(i)
		}
		text := func(i int) string { return HTMLText(cell(i).Text()) }

		company := text(cols.company)
		if company == "" {
			return
		}

		link := ""
		a := cell(cols.company).Find("a[href]").First()
		if a.Length() == 0 {
			a = tr.Find("a[href]").First()
		}
		if href, ok := a.Attr("href"); ok {
			link = resolveLink(base, href)
		}

		date := parseFeedDate(text(cols.issued))
		if date.IsZero() {
			date = parseFeedDate(text(cols.posted))
		}

		var body []string
		if subj := text(cols.subject); subj != "" {
			body = append(body, "Subject: "+subj+".")
		}
		if office := text(cols.office); office != "" {
			body = append(body, "Issuing office: "+office+".")
		}

		items = append(items, model.RawItem{
			Title:          company + " - Warning Letter",
			Link:           link,
			Body:           strings.Join(body, " "),
			Date:           date,
			Source:         FDAPageName,
			SourceCategory: model.CategoryOfficial,
		})
	})
	return items, nil
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
