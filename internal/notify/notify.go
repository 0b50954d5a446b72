// Package notify delivers alerts about newly recorded violations.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/resolve"
	"github.com/sells-group/fda-watch/pkg/notion"
)

// Notifier receives the new violations of a cycle.
type Notifier interface {
	Notify(ctx context.Context, vs []model.NewViolation) error
}

// Alert is the wire form of one new violation.
type Alert struct {
	Company   string           `json:"company"`
	Type      model.ActionType `json:"type"`
	Severity  int              `json:"severity"`
	Title     string           `json:"title"`
	Link      string           `json:"link,omitempty"`
	Date      time.Time        `json:"date"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewAlert builds the alert for nv.
func NewAlert(nv model.NewViolation, now time.Time) Alert {
	v := nv.Violation
	return Alert{
		Company:   nv.Company,
		Type:      v.Type,
		Severity:  v.Severity,
		Title:     v.Title,
		Link:      v.Link,
		Date:      v.Date,
		Message:   fmt.Sprintf("%s: %s (severity %d)", nv.Company, strings.ReplaceAll(string(v.Type), "_", " "), v.Severity),
		Timestamp: now,
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, []model.NewViolation) error { return nil }

// Multi fans out to every notifier; one failing does not stop the rest.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, vs []model.NewViolation) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, vs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Filter passes a violation on when its severity reaches MinSeverity or
// its company is on the watchlist.
type Filter struct {
	Next        Notifier
	MinSeverity int
	watch       map[string]bool
}

// NewFilter wraps next. Watchlist names are compared by normalized key.
func NewFilter(next Notifier, minSeverity int, watchlist []string) *Filter {
	f := &Filter{Next: next, MinSeverity: minSeverity, watch: make(map[string]bool, len(watchlist))}
	for _, name := range watchlist {
		if k := resolve.Key(name); k != "" {
			f.watch[k] = true
		}
	}
	return f
}

// Allow reports whether nv passes the filter.
func (f *Filter) Allow(nv model.NewViolation) bool {
	if f.watch[resolve.Key(nv.Company)] {
		return true
	}
	return nv.Violation.Severity >= f.MinSeverity
}

func (f *Filter) Notify(ctx context.Context, vs []model.NewViolation) error {
	var keep []model.NewViolation
	for _, nv := range vs {
		if f.Allow(nv) {
			keep = append(keep, nv)
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return f.Next.Notify(ctx, keep)
}

// FromConfig assembles the configured notifiers behind a Filter. It
// returns Nop when nothing is configured.
func FromConfig(cfg config.NotifyConfig) Notifier {
	var m Multi
	if cfg.WebhookURL != "" {
		m = append(m, NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		m = append(m, NewNotionNotifier(notion.NewClient(cfg.NotionToken), cfg.NotionDatabaseID))
	}
	if len(m) == 0 {
		zap.L().Debug("notify: no notifiers configured")
		return Nop{}
	}
	return NewFilter(m, cfg.MinSeverity, cfg.Watchlist)
}
