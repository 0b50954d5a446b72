package model

import (
	"time"
)

// Violation is the denormalized copy of a RegulatoryItem kept in a company's
// history. It is copied, not referenced, so history survives item retention.
type Violation struct {
	ID       string       `json:"id"`
	Type     ActionType   `json:"type"`
	Types    []ActionType `json:"types,omitempty"`
	Date     time.Time    `json:"date"`
	Title    string       `json:"title"`
	Link     string       `json:"link"`
	Source   string       `json:"source"`
	Summary  string       `json:"summary,omitempty"`
	Severity int          `json:"severity"`
}

// ViolationFromItem copies the fields of an item into a Violation.
func ViolationFromItem(it RegulatoryItem) Violation {
	summary := it.Summary
	if summary == "" {
		summary = it.Body
	}
	return Violation{
		ID:       it.ID,
		Type:     it.PrimaryType(),
		Types:    append([]ActionType(nil), it.Types...),
		Date:     it.Date,
		Title:    it.Title,
		Link:     it.Link,
		Source:   it.Source,
		Summary:  summary,
		Severity: it.Severity,
	}
}

// DedupKey returns the same key as the item the violation was copied from.
func (v Violation) DedupKey() string {
	return dedupKey(v.Link, v.Title)
}

// Contact is a person record attached to a company by an enrichment
// provider. The core does not interpret provider-specific semantics.
type Contact struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Title  string `json:"title,omitempty"`
	Source string `json:"source,omitempty"`
}

// Company is a canonical regulatory subject.
type Company struct {
	CanonicalName   string      `json:"canonical_name"`
	Aliases         []string    `json:"aliases"`
	Violations      []Violation `json:"violations"`
	RiskScore       float64     `json:"risk_score"`
	ComplianceScore float64     `json:"compliance_score"`
	Facilities      []string    `json:"facilities,omitempty"`
	Products        []string    `json:"products,omitempty"`
	Domain          string      `json:"domain,omitempty"`
	Ticker          string      `json:"ticker,omitempty"`
	Contacts        []Contact   `json:"contacts,omitempty"`
	FirstSeen       time.Time   `json:"first_seen"`
	LastUpdated     time.Time   `json:"last_updated"`
}

// RegistrySnapshot is the serializable form of the company registry.
type RegistrySnapshot struct {
	Companies []Company         `json:"companies"`
	Aliases   map[string]string `json:"aliases"` // match key -> canonical name
	SavedAt   time.Time         `json:"saved_at"`
}

// NewViolation pairs a freshly recorded violation with its company. It is
// the payload handed to notification collaborators.
type NewViolation struct {
	Company   string    `json:"company"`
	Violation Violation `json:"violation"`
}

// CycleResult summarizes one ingestion cycle.
type CycleResult struct {
	TotalItems       int            `json:"total_items"`
	UniqueItems      int            `json:"unique_items"`
	NewViolations    int            `json:"new_violations"`
	CompaniesTracked int            `json:"companies_tracked"`
	CompaniesCreated int            `json:"companies_created"`
	SourcesFailed    []string       `json:"sources_failed,omitempty"`
	New              []NewViolation `json:"-"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
}
