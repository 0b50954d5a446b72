// Package resolve normalizes raw company names and maps them to stable
// canonical identities.
package resolve

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists generic legal-entity suffixes. Matched case-insensitively
// after trailing punctuation has been removed, so "Inc." is listed as "inc".
var legalSuffixes = sortedByLength([]string{
	"llc", "l.l.c", "inc", "incorporated",
	"corp", "corporation", "ltd", "limited",
	"company", "co", "plc", "p.l.c", "gmbh",
	"sa", "s.a", "ag", "nv", "n.v", "bv", "b.v",
	"spa", "s.p.a", "lp", "l.p", "llp", "l.l.p",
	"se", "sas", "s.a.s", "srl", "s.r.l", "kk", "k.k",
	"oy", "ab", "a/s", "pty ltd", "pty. ltd", "pvt ltd",
	"pvt. ltd", "private limited",
})

// pharmaSuffixes are industry words that are usually noise but sometimes part
// of the brand. They are stripped only when enough of the name remains.
var pharmaSuffixes = sortedByLength([]string{
	"pharmaceuticals", "pharmaceutical", "pharma",
	"biopharmaceuticals", "biopharma", "biotech", "biotechnology",
	"therapeutics", "laboratories", "labs", "holdings", "group",
	"international", "global", "usa", "us", "health", "healthcare",
	"biosciences", "sciences", "biologics", "medical",
})

const (
	minLegalRemainder  = 3 // remainder must be longer than 2
	minPharmaRemainder = 5
)

const trailingPunct = ".,;:!?-–—_/\\\"'` "

var multiSpaceRe = regexp.MustCompile(`\s+`)

func sortedByLength(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Normalize standardizes a raw company name for matching and display:
//  1. Collapsing whitespace and trimming
//  2. Stripping trailing punctuation
//  3. Removing a single trailing legal suffix (Inc, LLC, GmbH, ...) when more
//     than two characters remain
//  4. Removing a single trailing pharma/industry suffix when at least five
//     characters remain
//
// Casing is preserved; use MatchKey for equality.
func Normalize(raw string) string {
	name := multiSpaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	name = strings.TrimRight(name, trailingPunct)
	if name == "" {
		return ""
	}

	name = stripSuffix(name, legalSuffixes, minLegalRemainder)
	name = stripSuffix(name, pharmaSuffixes, minPharmaRemainder)
	return name
}

// stripSuffix removes the first (longest) matching suffix when the remaining
// name keeps at least minRemain characters. A suffix that matches but would
// leave too little is kept and stops the search.
func stripSuffix(name string, suffixes []string, minRemain int) string {
	for _, s := range suffixes {
		cut := len(name) - len(s)
		if cut < 1 || !strings.EqualFold(name[cut:], s) {
			continue
		}
		prev := name[cut-1]
		if prev != ' ' && prev != ',' {
			continue
		}
		rest := strings.TrimRight(name[:cut], trailingPunct+"&")
		if utf8.RuneCountInString(rest) < minRemain {
			return name
		}
		return rest
	}
	return name
}

// MatchKey derives the lookup key for a name: accents folded, lower-cased,
// "&" spelled out, all non-alphanumerics dropped and whitespace collapsed.
// The key is never displayed.
func MatchKey(name string) string {
	// Chained transformers carry state, so build one per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.ReplaceAll(folded, "&", " and "))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’' || r == '.':
			// Apostrophes and dots join rather than split: "Reddy's", "S.A."
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Key is MatchKey(Normalize(raw)), the form used by the known-company table
// and the alias index.
func Key(raw string) string {
	return MatchKey(Normalize(raw))
}

var smallWords = map[string]bool{
	"and": true, "of": true, "the": true, "for": true, "de": true, "la": true,
}

// TitleCase converts a normalized name into display form. Mixed-case words
// (BioNTech, McKesson) and short all-caps acronyms (GSK, USA) are kept.
func TitleCase(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		lower := strings.ToLower(w)
		switch {
		case i > 0 && smallWords[lower]:
			words[i] = lower
		case isMixedCase(w):
			// keep
		case isUpper(w) && utf8.RuneCountInString(w) <= 3:
			// keep acronym
		default:
			words[i] = capitalizeParts(lower)
		}
	}
	return strings.Join(words, " ")
}

func capitalizeParts(w string) string {
	parts := strings.Split(w, "-")
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		if size == 0 {
			continue
		}
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, "-")
}

func isUpper(w string) bool {
	hasLetter := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func isMixedCase(w string) bool {
	var upper, lower int
	for i, r := range w {
		if unicode.IsUpper(r) {
			if i > 0 {
				upper++
			}
		} else if unicode.IsLower(r) {
			lower++
		}
	}
	return upper > 0 && lower > 0
}
