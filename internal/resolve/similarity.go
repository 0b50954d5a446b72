package resolve

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Similarity scores two match keys in [0,1], where 1 means identical.
type Similarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) float64

// Score implements Similarity.
func (f SimilarityFunc) Score(a, b string) float64 { return f(a, b) }

// Levenshtein is normalized edit-distance similarity. It is the default.
// When the leading tokens differ the score is capped by their own
// similarity, so a long shared tail cannot carry two different names
// ("acme compounding pharmacy", "apex compounding pharmacy") over the
// threshold.
var Levenshtein Similarity = SimilarityFunc(func(a, b string) float64 {
	if a == b {
		return 1
	}
	score := levenshtein.Similarity(a, b, nil)
	if ha, hb := leadingToken(a), leadingToken(b); ha != hb {
		score = min(score, levenshtein.Similarity(ha, hb, nil))
	}
	return score
})

func leadingToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// TokenSet is Jaccard similarity over the whitespace-separated tokens of
// the two keys. Word order and repeated words are ignored.
var TokenSet Similarity = SimilarityFunc(tokenSetJaccard)

func tokenSetJaccard(a, b string) float64 {
	if a == b {
		return 1
	}
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(s) {
		out[f] = true
	}
	return out
}

// SimilarityByName returns the named similarity ("levenshtein" or
// "token_set"), falling back to Levenshtein.
func SimilarityByName(name string) Similarity {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "token_set", "tokenset", "jaccard":
		return TokenSet
	default:
		return Levenshtein
	}
}
