package patterns

import (
	"math"
	"time"
)

// Scoring weights. Confidence blends the observed success rate with a
// usage bonus that saturates at ten executions and a recency bonus that
// decays in two steps.
const (
	usageBonusCap   = 0.1
	usageBonusScale = 10.0

	recentBonus     = 0.05
	recentWindow    = 7 * 24 * time.Hour
	staleBonus      = 0.02
	staleWindow     = 30 * 24 * time.Hour
)

// ComputeConfidence scores how trustworthy a pattern is as a shortcut.
// The result is always within [0, 1].
func ComputeConfidence(successRate float64, totalExecutions int, lastUpdated, now time.Time) float64 {
	confidence := successRate + usageBonus(totalExecutions) + recencyBonus(lastUpdated, now)
	return clamp01(math.Min(confidence, 1.0))
}

func usageBonus(totalExecutions int) float64 {
	ramp := math.Min(float64(totalExecutions)/usageBonusScale, 1.0)
	return ramp * usageBonusCap
}

func recencyBonus(lastUpdated, now time.Time) float64 {
	if lastUpdated.IsZero() {
		return 0
	}
	age := now.Sub(lastUpdated)
	switch {
	case age <= recentWindow:
		return recentBonus
	case age <= staleWindow:
		return staleBonus
	default:
		return 0
	}
}

// rollingAverage folds one new sample into a running mean of n samples
// without keeping the full history.
func rollingAverage(avg time.Duration, n int, sample time.Duration) time.Duration {
	if n <= 1 {
		return sample
	}
	total := float64(avg)*float64(n-1) + float64(sample)
	return time.Duration(total / float64(n))
}

// recompute refreshes the derived fields from the usage stats. Success
// rate is never stored independently of the counters it derives from.
func (p *AutomationPattern) recompute(now time.Time) {
	if p.UsageStats.TotalExecutions > 0 {
		p.SuccessRate = float64(p.UsageStats.SuccessfulExecutions) / float64(p.UsageStats.TotalExecutions)
	} else {
		p.SuccessRate = 0
	}
	p.ExecutionCount = p.UsageStats.TotalExecutions
	p.AverageExecutionTime = p.UsageStats.AverageExecutionTime
	p.Confidence = ComputeConfidence(p.SuccessRate, p.UsageStats.TotalExecutions, p.LastUpdated, now)
}
