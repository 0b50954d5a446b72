package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/fda-watch/internal/resolve"
)

// Input is the text an extraction strategy may inspect. Title has already
// been through CleanTitle.
type Input struct {
	Title string
	Body  string
	URL   string
}

// Strategy is one named extraction heuristic. Find returns a candidate and
// whether it found one; the Extractor validates and tidies the candidate.
type Strategy struct {
	Name string
	Find func(Input) (string, bool)
}

// Strategy names.
const (
	StrategyURL        = "url"
	StrategyTitle      = "title"
	StrategyBody       = "body"
	StrategyKnown      = "known"
	StrategyProperNoun = "proper_noun"
)

var fdaLetterPathRe = regexp.MustCompile(`(?i)/warning-letters/([a-z0-9-]+?)-\d{5,}-\d{6,8}/?$`)

// URLStrategy reads the company slug from FDA warning-letter URLs such as
// /warning-letters/acme-pharmaceuticals-inc-668123-12012023.
func URLStrategy() Strategy {
	return Strategy{Name: StrategyURL, Find: func(in Input) (string, bool) {
		if in.URL == "" {
			return "", false
		}
		path := in.URL
		if u, err := url.Parse(strings.TrimSpace(in.URL)); err == nil {
			path = u.Path
		}
		m := fdaLetterPathRe.FindStringSubmatch(path)
		if m == nil {
			return "", false
		}
		return resolve.TitleCase(strings.ReplaceAll(m[1], "-", " ")), true
	}}
}

// term ends a captured name: a preposition, a possessive followed by a
// lower-case word or a product acronym, punctuation, a spaced dash or the
// end of text.
const term = `(?:\s+(?:for|over|regarding|after|citing|on|at|in|about|due|following|amid|with|as|from|to)\b` +
	`|['’]s\s+(?:(?-i:[a-z])|(?:nda|bla|anda|ind)\b)` +
	`|\s*[,;:(]|\s+[-–—|]\s|\s*$)`

// bodyTerm also stops at a sentence end.
var bodyTerm = `(?:\.(?:\s|$)|` + term[3:]

const actionWords = `warning letter|complete response letter|crl|form 483|fda 483|483|untitled letter|import alert|clinical hold|consent decree`

const actionAlt = `(?:` + actionWords + `)`

// titlePatterns run in order. Subject-first headlines come before the
// "<action> for/on X" forms, which would otherwise pick up the product.
var titlePatterns = []*regexp.Regexp{
	// X receives a CRL
	regexp.MustCompile(`(?i)^(.+?)\s+(?:receives|received|gets|got|is hit with|hit with|handed|slapped with|faces|issued)\s+(?:an?\s+|another\s+|second\s+|new\s+)*(?:fda\s+)?` + actionAlt),
	// Warning Letter to X
	regexp.MustCompile(`(?i)\bwarning letters?\s+(?:issued\s+|sent\s+)?to\s+(.+?)` + term),
	// CRL to / for X
	regexp.MustCompile(`(?i)\b(?:complete response letter|crl)\s+(?:issued\s+|sent\s+)?(?:to|for)\s+(.+?)` + term),
	// Form 483 issued to X
	regexp.MustCompile(`(?i)\b(?:form\s+|fda\s+)?483(?:\s+observations)?\s+(?:issued\s+|sent\s+)?to\s+(.+?)` + term),
	// Untitled letter / import alert / clinical hold / consent decree for X
	regexp.MustCompile(`(?i)\b(?:untitled letter|import alert|clinical hold|consent decree)\s+(?:issued\s+|placed\s+|sent\s+|imposed\s+|entered\s+)?(?:to|for|on|against|with)\s+(.+?)` + term),
	// FDA issues a warning letter to X
	regexp.MustCompile(`(?i)^(?:u\.?s\.?\s+)?fda\s+(?:issues|sends|hands|slaps)\s+.+?\s+(?:to|on|against)\s+(.+?)` + term),
	// FDA warns X
	regexp.MustCompile(`(?i)^(?:u\.?s\.?\s+)?fda\s+(?:warns|cites|rebukes|reprimands|admonishes|slams)\s+(.+?)` + term),
	// X - Warning Letter
	regexp.MustCompile(`(?i)^(.+?)\s*[-–—:|]\s*(?:fda\s+)?(?:` + actionWords + `|recall)\b`),
	// Warning Letter: X
	regexp.MustCompile(`(?i)^(?:fda\s+)?(?:warning letter|crl|form 483|untitled letter|import alert|recall)\s*[-–—:|]\s*(.+?)` + term),
	// X recalls / X issues voluntary nationwide recall
	regexp.MustCompile(`(?i)^(.+?)\s+(?:voluntarily\s+|expands\s+|announces\s+(?:an?\s+)?(?:voluntary\s+)?(?:nationwide\s+)?|issues\s+(?:an?\s+)?(?:voluntary\s+)?(?:nationwide\s+)?)?recalls?\b`),
	// Generic leading clause before a spaced dash.
	regexp.MustCompile(`^([A-Z][^-–—|:]{1,80}?)\s+[-–—|]\s+\S`),
}

// TitleStrategy tries the ordered cue-phrase patterns against the title.
func TitleStrategy() Strategy {
	return Strategy{Name: StrategyTitle, Find: func(in Input) (string, bool) {
		return firstMatch(titlePatterns, in.Title, 6)
	}}
}

var bodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:issued|sent)\s+(?:an?\s+)?(?:warning letter|complete response letter|form 483|untitled letter)\s+to\s+(.+?)` + bodyTerm),
	regexp.MustCompile(`(?:^|[.!?]\s+)([A-Z][^.!?]{1,80}?)\s+(?i:has\s+)?(?i:received|receives)\s+(?i:an?\s+)?(?i:fda\s+)?(?i:warning letter|complete response letter|crl|form 483|483)`),
	regexp.MustCompile(`(?im)^\s*(?:recipient|recipient name|firm name|company)\s*:\s*(.+?)\s*$`),
}

// BodyStrategy tries cue phrases against the body text.
func BodyStrategy() Strategy {
	return Strategy{Name: StrategyBody, Find: func(in Input) (string, bool) {
		return firstMatch(bodyPatterns, in.Body, 8)
	}}
}

// KnownStrategy finds a whole-word mention of any name in the title. Names
// should be ordered longest first so "Novo Nordisk" wins over "Novo".
func KnownStrategy(names []string) Strategy {
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}
	return Strategy{Name: StrategyKnown, Find: func(in Input) (string, bool) {
		lt := strings.ToLower(in.Title)
		for i, n := range lowered {
			if n == "" {
				continue
			}
			if idx := wordIndex(lt, n); idx >= 0 {
				// Lower-casing can change byte widths; fall back to the
				// table spelling when offsets do not line up.
				if len(lt) == len(in.Title) {
					return in.Title[idx : idx+len(n)], true
				}
				return names[i], true
			}
		}
		return "", false
	}}
}

func wordIndex(s, sub string) int {
	from := 0
	for {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(sub)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

var corporateTail = toSet(
	"inc", "inc.", "llc", "ltd", "ltd.", "corp", "corp.", "corporation", "co", "co.",
	"plc", "gmbh", "ag", "sa", "nv", "limited",
	"pharmaceuticals", "pharmaceutical", "pharma", "biotech", "therapeutics",
	"laboratories", "labs", "biosciences", "biologics",
)

var headlineStop = toSet(
	"after", "amid", "over", "for", "to", "in", "on", "at", "with", "as", "from", "by",
	"says", "said", "announces", "announced", "issues", "issued", "receives", "received",
	"gets", "faces", "hit", "wins", "fails", "files", "plans", "shares", "stock",
	"stocks", "reports", "reported", "is", "was", "will", "has", "had", "cuts",
	"recalls", "recall", "warns", "warned", "agrees", "settles", "expands",
)

const maxProperNounWords = 4

// ProperNounStrategy takes the leading run of capitalized words from the
// title, stopping at headline verbs and prepositions. A trailing corporate
// or pharma suffix word is kept.
func ProperNounStrategy() Strategy {
	return Strategy{Name: StrategyProperNoun, Find: func(in Input) (string, bool) {
		words := strings.Fields(in.Title)
		var out []string
		for _, w := range words {
			bare := strings.Trim(w, ",;:!?\"'“”()")
			lower := strings.ToLower(bare)
			if bare == "" || headlineStop[lower] {
				break
			}
			if corporateTail[lower] && len(out) > 0 {
				out = append(out, bare)
				break
			}
			if bare != "&" && !startsUpperOrDigit(bare) {
				break
			}
			if len(out) == maxProperNounWords {
				break
			}
			out = append(out, bare)
			if strings.ContainsAny(w, ",;:") {
				break
			}
		}
		for len(out) > 0 && (out[len(out)-1] == "&" || strings.EqualFold(out[len(out)-1], "and")) {
			out = out[:len(out)-1]
		}
		if len(out) == 0 || denylist[strings.ToLower(out[0])] {
			return "", false
		}
		return strings.Join(out, " "), true
	}}
}

func startsUpperOrDigit(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r) || unicode.IsDigit(r)
	}
	return false
}

// firstMatch returns the first plausible capture across patterns. Captures
// longer than maxWords words are rejected as sentence fragments.
func firstMatch(patterns []*regexp.Regexp, text string, maxWords int) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		c := tidy(m[1])
		if len(strings.Fields(c)) > maxWords {
			continue
		}
		if IsPlausibleName(c) {
			return c, true
		}
	}
	return "", false
}
