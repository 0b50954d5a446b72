// Package scorer computes company risk and compliance scores from violation
// history.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fda-watch/internal/config"
)

// DefaultRiskConfig returns a config.RiskConfig with the standard weights
// and windows. Component weights sum to 1.
func DefaultRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		// Weights (sum = 1).
		CountWeight:     0.3,
		SeverityWeight:  0.3,
		FrequencyWeight: 0.2,
		ResponseWeight:  0.1,
		RepeatWeight:    0.1,

		// Risk window and caps.
		WindowDays:          730,
		CountCap:            10,
		FrequencyCap:        2,
		ResponseDecayDays:   365,
		DiversityMultiplier: 1.5,
		DiversityMinTypes:   2,
		BurstMultiplier:     1.3,
		BurstThreshold:      3,

		// Compliance.
		ComplianceWindowDays: 182,
		CompliancePenalty:    10,
		HighSeverity:         8,
		HighSeverityFactor:   2,
		MidSeverity:          6,
		MidSeverityFactor:    1.5,
		HistoricalPenalty:    2,
		HistoricalPenaltyCap: 30,
		CleanBonus:           5,
	}
}

// WeightSum returns the sum of all risk component weights.
func WeightSum(c config.RiskConfig) float64 {
	return c.CountWeight + c.SeverityWeight + c.FrequencyWeight +
		c.ResponseWeight + c.RepeatWeight
}

// ValidateConfig checks that a RiskConfig is internally consistent.
func ValidateConfig(c config.RiskConfig) error {
	var errs []string

	weights := map[string]float64{
		"count_weight":     c.CountWeight,
		"severity_weight":  c.SeverityWeight,
		"frequency_weight": c.FrequencyWeight,
		"response_weight":  c.ResponseWeight,
		"repeat_weight":    c.RepeatWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	// Weights should be close to 1 (allow tolerance for floating-point).
	if sum := WeightSum(c); math.Abs(sum-1) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.2f", sum))
	}

	positive := map[string]float64{
		"window_days":            float64(c.WindowDays),
		"count_cap":              float64(c.CountCap),
		"frequency_cap":          c.FrequencyCap,
		"response_decay_days":    float64(c.ResponseDecayDays),
		"compliance_window_days": float64(c.ComplianceWindowDays),
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0", name))
		}
	}

	if c.ComplianceWindowDays > c.WindowDays {
		errs = append(errs, "compliance_window_days must be <= window_days")
	}
	if c.DiversityMultiplier < 1 || c.BurstMultiplier < 1 {
		errs = append(errs, "multipliers must be >= 1")
	}
	if c.HighSeverity < c.MidSeverity || c.HighSeverity > 10 || c.MidSeverity < 0 {
		errs = append(errs, "severity tiers must satisfy 0 <= mid_severity <= high_severity <= 10")
	}
	if c.CompliancePenalty < 0 || c.HistoricalPenalty < 0 || c.HistoricalPenaltyCap < 0 || c.CleanBonus < 0 {
		errs = append(errs, "compliance penalties and bonus must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
