package scorer

import (
	"math"
	"time"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
)

const (
	day           = 24 * time.Hour
	daysPerMonth  = 30.44
	maxComponent  = 100.0
	severityScale = 10.0
)

// Breakdown is the per-component view of a risk score. Components are on a
// 0-100 scale before weighting.
type Breakdown struct {
	Count      float64 `json:"count"`
	Severity   float64 `json:"severity"`
	Frequency  float64 `json:"frequency"`
	Response   float64 `json:"response"`
	Repeat     float64 `json:"repeat"`
	Multiplier float64 `json:"multiplier"`
	Recent     int     `json:"recent"`
	Types      int     `json:"types"`
	Total      float64 `json:"total"`
}

// RiskScore returns the 0-100 risk score for vs as of now.
func RiskScore(vs []model.Violation, now time.Time, cfg config.RiskConfig) float64 {
	return RiskBreakdown(vs, now, cfg).Total
}

// RiskBreakdown computes the weighted risk score over the trailing window:
//   - count: violations in the window, capped at CountCap
//   - severity: average severity on a 0-10 scale
//   - frequency: violations per month since the oldest in-window violation,
//     capped at FrequencyCap
//   - response: recency of the latest violation, decaying linearly over
//     ResponseDecayDays
//   - repeat: share of violations that repeat an already-seen type
//
// The weighted sum is multiplied for type diversity and recent bursts, then
// clamped to [0,100].
func RiskBreakdown(vs []model.Violation, now time.Time, cfg config.RiskConfig) Breakdown {
	cutoff := now.Add(-time.Duration(cfg.WindowDays) * day)

	var (
		recent   []model.Violation
		sevTotal int
		oldest   time.Time
		newest   time.Time
		types    = make(map[model.ActionType]bool)
	)
	for _, v := range vs {
		if !v.Date.After(cutoff) {
			continue
		}
		recent = append(recent, v)
		sevTotal += v.Severity
		types[v.Type] = true
		if oldest.IsZero() || v.Date.Before(oldest) {
			oldest = v.Date
		}
		if v.Date.After(newest) {
			newest = v.Date
		}
	}

	b := Breakdown{Multiplier: 1, Recent: len(recent), Types: len(types)}
	n := float64(len(recent))
	if n == 0 {
		return b
	}

	if cfg.CountCap > 0 {
		b.Count = math.Min(n, float64(cfg.CountCap)) / float64(cfg.CountCap) * maxComponent
	}

	b.Severity = clamp(float64(sevTotal)/n/severityScale*maxComponent, 0, maxComponent)

	months := math.Max(1, now.Sub(oldest).Hours()/24/daysPerMonth)
	if cfg.FrequencyCap > 0 {
		b.Frequency = math.Min(n/months, cfg.FrequencyCap) / cfg.FrequencyCap * maxComponent
	}

	if cfg.ResponseDecayDays > 0 {
		age := math.Max(0, now.Sub(newest).Hours()/24)
		b.Response = math.Max(0, 1-age/float64(cfg.ResponseDecayDays)) * maxComponent
	}

	b.Repeat = (n - float64(len(types))) / n * maxComponent

	base := cfg.CountWeight*b.Count +
		cfg.SeverityWeight*b.Severity +
		cfg.FrequencyWeight*b.Frequency +
		cfg.ResponseWeight*b.Response +
		cfg.RepeatWeight*b.Repeat

	if cfg.DiversityMinTypes > 0 && len(types) >= cfg.DiversityMinTypes {
		b.Multiplier *= cfg.DiversityMultiplier
	}
	if len(recent) > cfg.BurstThreshold {
		b.Multiplier *= cfg.BurstMultiplier
	}

	b.Total = round1(clamp(base*b.Multiplier, 0, maxComponent))
	return b
}

// ComplianceScore starts at 100 and subtracts CompliancePenalty per
// violation in the compliance window, scaled for high and mid severity.
// Older violations inside the risk window cost HistoricalPenalty each, up
// to HistoricalPenaltyCap. An empty compliance window earns CleanBonus.
// The result is clamped to [0,100].
func ComplianceScore(vs []model.Violation, now time.Time, cfg config.RiskConfig) float64 {
	recentCutoff := now.Add(-time.Duration(cfg.ComplianceWindowDays) * day)
	histCutoff := now.Add(-time.Duration(cfg.WindowDays) * day)

	score := maxComponent
	var (
		recent     int
		historical float64
	)
	for _, v := range vs {
		switch {
		case v.Date.After(recentCutoff):
			recent++
			p := cfg.CompliancePenalty
			if v.Severity >= cfg.HighSeverity {
				p *= cfg.HighSeverityFactor
			} else if v.Severity >= cfg.MidSeverity {
				p *= cfg.MidSeverityFactor
			}
			score -= p
		case v.Date.After(histCutoff):
			historical += cfg.HistoricalPenalty
		}
	}

	score -= math.Min(historical, cfg.HistoricalPenaltyCap)
	if recent == 0 {
		score += cfg.CleanBonus
	}
	return round1(clamp(score, 0, maxComponent))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
