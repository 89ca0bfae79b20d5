package patterns

import (
	"sort"
	"time"
)

// SortBy selects the ordering of query results. All orderings are
// descending on their key.
type SortBy string

const (
	SortBySuccessRate SortBy = "success_rate"
	SortByConfidence  SortBy = "confidence"
	SortByUsage       SortBy = "usage"
	SortByRecency     SortBy = "recency"
)

// Criteria filters and orders a pattern query. Zero values mean "no
// constraint"; filters are exact, there is no fuzzy matching.
type Criteria struct {
	TaskType             string
	MinSuccessRate       float64
	MinConfidence        float64
	RequiredTags         []string
	RequiredCapabilities []string
	MaxAgeDays           int
	SortBy               SortBy
	Limit                int
}

// matches reports whether the pattern satisfies every set field.
func (c Criteria) matches(p *AutomationPattern, now time.Time) bool {
	if c.TaskType != "" && p.TaskType != c.TaskType {
		return false
	}
	if p.SuccessRate < c.MinSuccessRate {
		return false
	}
	if p.Confidence < c.MinConfidence {
		return false
	}
	for _, tag := range c.RequiredTags {
		if !containsString(p.Tags, tag) {
			return false
		}
	}
	// The pattern must cover every requested capability
	for _, capability := range c.RequiredCapabilities {
		if !containsString(p.RequiredCapabilities, capability) {
			return false
		}
	}
	if c.MaxAgeDays > 0 {
		cutoff := now.Add(-time.Duration(c.MaxAgeDays) * 24 * time.Hour)
		if p.LastUpdated.Before(cutoff) {
			return false
		}
	}
	return true
}

// sortPatterns orders the slice in place, descending on the requested key.
// Ties keep a stable order so repeated queries agree.
func sortPatterns(list []*AutomationPattern, by SortBy) {
	var less func(a, b *AutomationPattern) bool
	switch by {
	case SortByConfidence:
		less = func(a, b *AutomationPattern) bool { return a.Confidence > b.Confidence }
	case SortByUsage:
		less = func(a, b *AutomationPattern) bool {
			return a.UsageStats.TotalExecutions > b.UsageStats.TotalExecutions
		}
	case SortByRecency:
		less = func(a, b *AutomationPattern) bool { return a.LastUpdated.After(b.LastUpdated) }
	default:
		less = func(a, b *AutomationPattern) bool { return a.SuccessRate > b.SuccessRate }
	}
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}
