package notify

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/pkg/notion"
)

// Watchlist database property names.
const (
	propCompany  = "Company"
	propAction   = "Latest Action"
	propSeverity = "Severity"
	propDate     = "Action Date"
	propTitle    = "Headline"
	propLink     = "Link"
	propCount    = "New Violations"
)

// NotionNotifier keeps one page per company in a Notion database, updated
// with the most severe new violation of each cycle.
type NotionNotifier struct {
	client notion.Client
	dbID   string
}

// NewNotionNotifier creates a NotionNotifier writing to database dbID.
func NewNotionNotifier(c notion.Client, dbID string) *NotionNotifier {
	return &NotionNotifier{client: c, dbID: dbID}
}

func (n *NotionNotifier) Notify(ctx context.Context, vs []model.NewViolation) error {
	type entry struct {
		worst model.NewViolation
		count int
	}
	var order []string
	byCompany := make(map[string]*entry)
	for _, nv := range vs {
		e, ok := byCompany[nv.Company]
		if !ok {
			e = &entry{worst: nv}
			byCompany[nv.Company] = e
			order = append(order, nv.Company)
		}
		e.count++
		if nv.Violation.Severity > e.worst.Violation.Severity {
			e.worst = nv
		}
	}

	for _, company := range order {
		e := byCompany[company]
		if err := n.upsert(ctx, e.worst, e.count); err != nil {
			return eris.Wrapf(err, "notify: notion page for %s", company)
		}
	}
	return nil
}

func (n *NotionNotifier) upsert(ctx context.Context, nv model.NewViolation, count int) error {
	v := nv.Violation
	props := notionapi.Properties{
		propAction:   notion.Select(string(v.Type)),
		propSeverity: notion.Number(float64(v.Severity)),
		propDate:     notion.Date(v.Date),
		propTitle:    notion.Text(v.Title),
		propCount:    notion.Number(float64(count)),
	}
	if v.Link != "" {
		props[propLink] = notion.URL(v.Link)
	}

	page, err := notion.FindByTitle(ctx, n.client, n.dbID, propCompany, nv.Company)
	if err != nil {
		return err
	}
	if page != nil {
		_, err = n.client.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{Properties: props})
		zap.L().Debug("notify: notion page updated", zap.String("company", nv.Company))
		return err
	}

	props[propCompany] = notion.Title(nv.Company)
	_, err = n.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(n.dbID),
		},
		Properties: props,
	})
	zap.L().Debug("notify: notion page created", zap.String("company", nv.Company))
	return err
}
