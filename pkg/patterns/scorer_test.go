package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var scorerNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestComputeConfidence(t *testing.T) {
	tests := []struct {
		name        string
		successRate float64
		executions  int
		lastUpdated time.Time
		want        float64
	}{
		{
			name:        "fresh and heavily used",
			successRate: 0.8,
			executions:  10,
			lastUpdated: scorerNow.Add(-time.Hour),
			want:        0.95, // 0.8 + 0.1 usage + 0.05 recency
		},
		{
			name:        "usage bonus scales below ten runs",
			successRate: 0.5,
			executions:  4,
			lastUpdated: scorerNow.Add(-time.Hour),
			want:        0.59, // 0.5 + 0.04 usage + 0.05 recency
		},
		{
			name:        "older than a week but within a month",
			successRate: 0.6,
			executions:  20,
			lastUpdated: scorerNow.Add(-14 * 24 * time.Hour),
			want:        0.72, // 0.6 + 0.1 + 0.02
		},
		{
			name:        "older than a month gets no recency bonus",
			successRate: 0.6,
			executions:  20,
			lastUpdated: scorerNow.Add(-90 * 24 * time.Hour),
			want:        0.7,
		},
		{
			name:        "capped at one",
			successRate: 1.0,
			executions:  100,
			lastUpdated: scorerNow,
			want:        1.0,
		},
		{
			name:        "zero success rate keeps the bonuses",
			successRate: 0,
			executions:  10,
			lastUpdated: scorerNow,
			want:        0.15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeConfidence(tt.successRate, tt.executions, tt.lastUpdated, scorerNow)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestComputeConfidenceBounds(t *testing.T) {
	// Whatever the inputs, the score stays within [0, 1]
	extremes := []struct {
		rate        float64
		executions  int
		lastUpdated time.Time
	}{
		{1.0, 1000000, scorerNow},
		{0, 0, time.Time{}},
		{0.99, 9, scorerNow},
		{1.0, 10, scorerNow.Add(-365 * 24 * time.Hour)},
	}

	for _, e := range extremes {
		got := ComputeConfidence(e.rate, e.executions, e.lastUpdated, scorerNow)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestUsageBonus(t *testing.T) {
	assert.InDelta(t, 0.0, usageBonus(0), 1e-9)
	assert.InDelta(t, 0.01, usageBonus(1), 1e-9)
	assert.InDelta(t, 0.05, usageBonus(5), 1e-9)
	assert.InDelta(t, 0.1, usageBonus(10), 1e-9)
	assert.InDelta(t, 0.1, usageBonus(500), 1e-9, "bonus saturates at ten executions")
}

func TestRecencyBonus(t *testing.T) {
	assert.InDelta(t, 0.05, recencyBonus(scorerNow.Add(-6*24*time.Hour), scorerNow), 1e-9)
	assert.InDelta(t, 0.05, recencyBonus(scorerNow.Add(-7*24*time.Hour), scorerNow), 1e-9)
	assert.InDelta(t, 0.02, recencyBonus(scorerNow.Add(-8*24*time.Hour), scorerNow), 1e-9)
	assert.InDelta(t, 0.02, recencyBonus(scorerNow.Add(-30*24*time.Hour), scorerNow), 1e-9)
	assert.InDelta(t, 0.0, recencyBonus(scorerNow.Add(-31*24*time.Hour), scorerNow), 1e-9)
	assert.InDelta(t, 0.0, recencyBonus(time.Time{}, scorerNow), 1e-9)
}

func TestRollingAverage(t *testing.T) {
	// Matches the arithmetic mean without storing the samples
	samples := []time.Duration{2 * time.Second, 4 * time.Second, 9 * time.Second, 1 * time.Second}

	var avg time.Duration
	for i, s := range samples {
		avg = rollingAverage(avg, i+1, s)
	}
	assert.Equal(t, 4*time.Second, avg)
}

func TestRecompute(t *testing.T) {
	p := &AutomationPattern{
		ID:          "abc",
		TaskType:    "vehicle_lookup",
		LastUpdated: scorerNow,
	}
	for i := 0; i < 10; i++ {
		p.UsageStats.record(ExecutionRecord{Success: i >= 2, Duration: time.Second})
	}

	p.recompute(scorerNow)

	assert.InDelta(t, 0.8, p.SuccessRate, 1e-9)
	assert.Equal(t, 10, p.ExecutionCount)
	assert.Equal(t, time.Second, p.AverageExecutionTime)
	assert.InDelta(t, 0.95, p.Confidence, 1e-9)
}
