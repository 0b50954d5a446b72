// Package model defines the shared types that flow through the ingestion pipeline.
package model

import (
	"net/url"
	"strings"
	"time"
)

// ActionType tags the kind of regulatory action an item describes.
type ActionType string

const (
	ActionConsentDecree  ActionType = "consent_decree"
	ActionCRL            ActionType = "crl"
	ActionWarningLetter  ActionType = "warning_letter"
	ActionClinicalHold   ActionType = "clinical_hold"
	ActionRecall         ActionType = "recall"
	ActionImportAlert    ActionType = "import_alert"
	ActionForm483        ActionType = "form_483"
	ActionUntitledLetter ActionType = "untitled_letter"
	ActionRegulatoryNews ActionType = "regulatory_news" // no keyword matched
)

// SourceCategory groups sources by provenance.
type SourceCategory string

const (
	CategoryOfficial SourceCategory = "official"
	CategoryTrade    SourceCategory = "trade"
	CategoryGoogle   SourceCategory = "google"
	CategorySEC      SourceCategory = "sec"
)

// Valid reports whether c is one of the known categories.
func (c SourceCategory) Valid() bool {
	switch c {
	case CategoryOfficial, CategoryTrade, CategoryGoogle, CategorySEC:
		return true
	default:
		return false
	}
}

// UnknownCompany is the sentinel raw name used when extraction finds nothing.
const UnknownCompany = "Unknown Company"

// RawItem is a single record as returned by a fetch source, before any
// classification or attribution.
type RawItem struct {
	Title          string         `json:"title"`
	Link           string         `json:"link"`
	Body           string         `json:"body,omitempty"`
	Date           time.Time      `json:"date"`
	Source         string         `json:"source"`
	SourceCategory SourceCategory `json:"source_category"`
}

// Classification is the classifier output for one item.
type Classification struct {
	Types    []ActionType `json:"types"`
	Severity int          `json:"severity"`
}

// Primary returns the highest-severity type.
func (c Classification) Primary() ActionType {
	if len(c.Types) == 0 {
		return ActionRegulatoryNews
	}
	return c.Types[0]
}

// RegulatoryItem is one observed regulatory action.
type RegulatoryItem struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Link           string         `json:"link"`
	Body           string         `json:"body,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	RawCompanyText string         `json:"raw_company_text"`
	Company        string         `json:"company,omitempty"` // canonical name once resolved
	Date           time.Time      `json:"date"`
	Source         string         `json:"source"`
	SourceCategory SourceCategory `json:"source_category"`
	Types          []ActionType   `json:"types"`
	Severity       int            `json:"severity"`
}

// PrimaryType returns the first (highest-severity) action type.
func (it RegulatoryItem) PrimaryType() ActionType {
	if len(it.Types) == 0 {
		return ActionRegulatoryNews
	}
	return it.Types[0]
}

// DedupKey returns the key used to collapse the same item seen across
// sources. Items without a link fall back to their lower-cased title.
func (it RegulatoryItem) DedupKey() string {
	return dedupKey(it.Link, it.Title)
}

func dedupKey(link, title string) string {
	if k := CleanLink(link); k != "" {
		return k
	}
	t := strings.ToLower(strings.Join(strings.Fields(title), " "))
	if t == "" {
		return ""
	}
	return "title:" + t
}

// CleanLink strips query string, fragment and trailing slash from a link and
// lower-cases it.
func CleanLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		u.RawQuery = ""
		u.Fragment = ""
		u.ForceQuery = false
		link = u.String()
	} else {
		if i := strings.IndexAny(link, "?#"); i >= 0 {
			link = link[:i]
		}
	}
	link = strings.TrimRight(link, "/")
	return strings.ToLower(link)
}
