// Package classify maps item text to regulatory action types and a severity.
package classify

import (
	"sort"
	"strings"

	"github.com/sells-group/fda-watch/internal/model"
)

// Rule is the keyword list and severity for one action type.
type Rule struct {
	Type     model.ActionType
	Keywords []string
	Severity int
}

// Severity constants used by DefaultRules.
const (
	SeverityConsentDecree  = 10
	SeverityCRL            = 9
	SeverityWarningLetter  = 8
	SeverityClinicalHold   = 8
	SeverityRecall         = 7
	SeverityImportAlert    = 7
	SeverityForm483        = 6
	SeverityUntitledLetter = 5
)

// DefaultRules returns the built-in classification table.
func DefaultRules() []Rule {
	return []Rule{
		{Type: model.ActionConsentDecree, Keywords: []string{"consent decree", "permanent injunction"}, Severity: SeverityConsentDecree},
		{Type: model.ActionCRL, Keywords: []string{"complete response letter", "crl"}, Severity: SeverityCRL},
		{Type: model.ActionWarningLetter, Keywords: []string{"warning letter"}, Severity: SeverityWarningLetter},
		{Type: model.ActionClinicalHold, Keywords: []string{"clinical hold"}, Severity: SeverityClinicalHold},
		{Type: model.ActionRecall, Keywords: []string{"recall"}, Severity: SeverityRecall},
		{Type: model.ActionImportAlert, Keywords: []string{"import alert"}, Severity: SeverityImportAlert},
		{Type: model.ActionForm483, Keywords: []string{"form 483", "fda 483", "inspectional observations", "483 observations"}, Severity: SeverityForm483},
		{Type: model.ActionUntitledLetter, Keywords: []string{"untitled letter"}, Severity: SeverityUntitledLetter},
	}
}

// Classifier holds a static keyword table. It is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier. With no rules it uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		normalized[i] = Rule{Type: r.Type, Keywords: kws, Severity: r.Severity}
	}
	return &Classifier{rules: normalized}
}

// Classify returns every action type with a keyword present in title+body,
// ordered by descending severity, and the maximum severity. When nothing
// matches the result is the regulatory_news sentinel with severity 0.
func (c *Classifier) Classify(title, body string) model.Classification {
	text := strings.ToLower(title + " " + body)

	var matched []Rule
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, r)
				break
			}
		}
	}

	if len(matched) == 0 {
		return model.Classification{
			Types:    []model.ActionType{model.ActionRegulatoryNews},
			Severity: 0,
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Severity != matched[j].Severity {
			return matched[i].Severity > matched[j].Severity
		}
		return matched[i].Type < matched[j].Type
	})

	out := model.Classification{Types: make([]model.ActionType, 0, len(matched))}
	for _, r := range matched {
		out.Types = append(out.Types, r.Type)
		if r.Severity > out.Severity {
			out.Severity = r.Severity
		}
	}
	return out
}

// SeverityOf returns the configured severity for an action type, or 0.
func (c *Classifier) SeverityOf(t model.ActionType) int {
	for _, r := range c.rules {
		if r.Type == t {
			return r.Severity
		}
	}
	return 0
}
