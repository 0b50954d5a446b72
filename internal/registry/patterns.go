package registry

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/fda-watch/internal/model"
)

// Hotspot is a company with dense violation activity inside one window.
type Hotspot struct {
	Company     string    `json:"company"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// Escalation is a company whose latest violation is more severe than the
// one before it.
type Escalation struct {
	Company      string           `json:"company"`
	From         model.ActionType `json:"from"`
	To           model.ActionType `json:"to"`
	FromSeverity int              `json:"from_severity"`
	ToSeverity   int              `json:"to_severity"`
	Date         time.Time        `json:"date"`
}

// ThemeMatch is a company whose violation text hits a theme's keywords.
type ThemeMatch struct {
	Company    string   `json:"company"`
	Violations int      `json:"violations"`
	Keywords   []string `json:"keywords"`
}

// RepeatOffender is a company with a long violation history.
type RepeatOffender struct {
	Company    string  `json:"company"`
	Violations int     `json:"violations"`
	RiskScore  float64 `json:"risk_score"`
}

// Patterns is the result of a registry-wide scan.
type Patterns struct {
	Hotspots        []Hotspot        `json:"hotspots"`
	Escalating      []Escalation     `json:"escalating"`
	Manufacturing   []ThemeMatch     `json:"manufacturing"`
	Clinical        []ThemeMatch     `json:"clinical"`
	Promotional     []ThemeMatch     `json:"promotional"`
	RepeatOffenders []RepeatOffender `json:"repeat_offenders"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

var (
	manufacturingKeywords = []string{
		"cgmp", "gmp", "manufacturing", "contamination", "sterility", "sterile",
		"facility", "batch", "quality control", "adulterated", "impurity",
		"nitrosamine", "data integrity", "laboratory controls",
	}
	clinicalKeywords = []string{
		"clinical", "trial", "investigational", "ind ", "irb", "informed consent",
		"efficacy", "safety data", "bioequivalence", "study", "patients",
	}
	promotionalKeywords = []string{
		"promotional", "marketing", "advertising", "misbranded", "misleading",
		"off-label", "social media", "website claims", "false or misleading",
		"opdp",
	}
)

// DetectPatterns scans every company without mutating the registry.
func (r *Registry) DetectPatterns() Patterns {
	companies := r.Companies()
	window := time.Duration(r.cfg.HotspotWindowDays) * day

	p := Patterns{
		Hotspots:        []Hotspot{},
		Escalating:      []Escalation{},
		Manufacturing:   []ThemeMatch{},
		Clinical:        []ThemeMatch{},
		Promotional:     []ThemeMatch{},
		RepeatOffenders: []RepeatOffender{},
		GeneratedAt:     r.now(),
	}

	for _, c := range companies {
		if h, ok := densestWindow(c, window); ok && h.Count >= r.cfg.HotspotMin {
			p.Hotspots = append(p.Hotspots, h)
		}
		if e, ok := escalation(c); ok {
			p.Escalating = append(p.Escalating, e)
		}
		if m, ok := themeMatch(c, manufacturingKeywords); ok {
			p.Manufacturing = append(p.Manufacturing, m)
		}
		if m, ok := themeMatch(c, clinicalKeywords); ok {
			p.Clinical = append(p.Clinical, m)
		}
		if m, ok := themeMatch(c, promotionalKeywords); ok {
			p.Promotional = append(p.Promotional, m)
		}
		if len(c.Violations) >= r.cfg.RepeatOffenderMin {
			p.RepeatOffenders = append(p.RepeatOffenders, RepeatOffender{
				Company:    c.CanonicalName,
				Violations: len(c.Violations),
				RiskScore:  c.RiskScore,
			})
		}
	}

	sort.Slice(p.Hotspots, func(i, j int) bool {
		a, b := p.Hotspots[i], p.Hotspots[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Company < b.Company
	})
	sort.Slice(p.Escalating, func(i, j int) bool {
		a, b := p.Escalating[i], p.Escalating[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Company < b.Company
	})
	for _, list := range [][]ThemeMatch{p.Manufacturing, p.Clinical, p.Promotional} {
		sortThemes(list)
	}
	sort.Slice(p.RepeatOffenders, func(i, j int) bool {
		a, b := p.RepeatOffenders[i], p.RepeatOffenders[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if a.Violations != b.Violations {
			return a.Violations > b.Violations
		}
		return a.Company < b.Company
	})
	return p
}

const day = 24 * time.Hour

// densestWindow finds the window of the given width holding the most
// violations.
func densestWindow(c model.Company, width time.Duration) (Hotspot, bool) {
	if len(c.Violations) == 0 {
		return Hotspot{}, false
	}
	dates := make([]time.Time, len(c.Violations))
	for i, v := range c.Violations {
		dates[i] = v.Date
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	best := Hotspot{Company: c.CanonicalName}
	lo := 0
	for hi := range dates {
		for dates[hi].Sub(dates[lo]) > width {
			lo++
		}
		if n := hi - lo + 1; n > best.Count {
			best.Count = n
			best.WindowStart = dates[lo]
			best.WindowEnd = dates[hi]
		}
	}
	return best, true
}

// escalation compares the two most recent violations. Violations are kept
// newest first.
func escalation(c model.Company) (Escalation, bool) {
	if len(c.Violations) < 2 {
		return Escalation{}, false
	}
	latest, prev := c.Violations[0], c.Violations[1]
	if latest.Severity <= prev.Severity {
		return Escalation{}, false
	}
	return Escalation{
		Company:      c.CanonicalName,
		From:         prev.Type,
		To:           latest.Type,
		FromSeverity: prev.Severity,
		ToSeverity:   latest.Severity,
		Date:         latest.Date,
	}, true
}

func themeMatch(c model.Company, keywords []string) (ThemeMatch, bool) {
	m := ThemeMatch{Company: c.CanonicalName}
	hit := make(map[string]bool)
	for _, v := range c.Violations {
		text := " " + strings.ToLower(v.Title+" "+v.Summary) + " "
		matched := false
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hit[strings.TrimSpace(kw)] = true
				matched = true
			}
		}
		if matched {
			m.Violations++
		}
	}
	if m.Violations == 0 {
		return ThemeMatch{}, false
	}
	for kw := range hit {
		m.Keywords = append(m.Keywords, kw)
	}
	sort.Strings(m.Keywords)
	return m, true
}

func sortThemes(list []ThemeMatch) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Violations != list[j].Violations {
			return list[i].Violations > list[j].Violations
		}
		return list[i].Company < list[j].Company
	})
}
