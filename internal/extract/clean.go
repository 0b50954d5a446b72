package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var wireTagRe = regexp.MustCompile(`(?i)^\s*\[?\s*(?:breaking(?:\s+news)?|update[d]?|exclusive|just in|developing|alert|watch|opinion|analysis)\s*[:\]|\-–—]\s*`)

const dateTok = `(?:` +
	`\d{4}-\d{1,2}-\d{1,2}` +
	`|\d{1,2}[/.]\d{1,2}[/.]\d{2,4}` +
	`|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
	`|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?\s+\d{4}` +
	`)`

var (
	leadingDateRe  = regexp.MustCompile(`(?i)^\s*\(?` + dateTok + `\)?\s*[-–—:|,]?\s*`)
	trailingDateRe = regexp.MustCompile(`(?i)\s*[-–—:|,]?\s*\(?` + dateTok + `\)?\s*$`)
	multiSpaceRe   = regexp.MustCompile(`\s+`)
)

// CleanTitle strips wire-service tags ("BREAKING:", "UPDATE:") and leading
// or trailing date tokens from a title.
func CleanTitle(title string) string {
	t := multiSpaceRe.ReplaceAllString(strings.TrimSpace(title), " ")
	for {
		next := wireTagRe.ReplaceAllString(t, "")
		next = leadingDateRe.ReplaceAllString(next, "")
		next = trailingDateRe.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == t {
			return t
		}
		t = next
	}
}

var denylist = toSet(
	"fda", "u.s. fda", "us fda", "the fda", "food and drug administration",
	"agency", "regulator", "regulators", "government",
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"today", "yesterday", "week", "this week", "last week",
	"unknown", "unknown company", "tbd", "n/a", "na", "none", "null",
	"company", "companies", "firm", "manufacturer", "drugmaker", "drugmakers",
	"pharma", "biotech", "the", "a", "an", "us", "u.s.", "usa",
	"news", "breaking", "update", "exclusive", "report", "roundup",
	"how", "why", "what", "when", "new", "inside", "analysis",
	"warning", "letter", "letters", "recall", "recalls", "crl", "483",
	"approval", "inspection", "inspections",
)

var actionPhrases = []string{
	"warning letter", "complete response letter", "form 483",
	"untitled letter", "import alert", "clinical hold", "consent decree",
	"inspectional observations",
}

func toSet(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// IsPlausibleName rejects candidates that cannot be a company: empty or
// out-of-range length, no letters, denylisted tokens (FDA, months,
// weekdays, placeholders) and bare action phrases.
func IsPlausibleName(name string) bool {
	n := strings.TrimSpace(name)
	if l := utf8.RuneCountInString(n); l < 2 || l > 100 {
		return false
	}
	if !hasLetter(n) {
		return false
	}

	lower := strings.ToLower(n)
	if denylist[lower] {
		return false
	}
	if strings.HasPrefix(lower, "fda ") || strings.HasPrefix(lower, "u.s. fda") || strings.HasPrefix(lower, "us fda") {
		return false
	}
	for _, p := range actionPhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}

	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if hasLetter(w) && !denylist[w] {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// tidy trims quotes, whitespace and trailing punctuation from a candidate.
func tidy(s string) string {
	s = multiSpaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.Trim(s, "\"'“”‘’`«» ")
	s = strings.TrimRight(s, ".,;:!?-–—| ")
	return strings.TrimSpace(s)
}
