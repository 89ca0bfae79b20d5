// Package patterns implements the adaptive pattern store: remembered,
// scored recipes of UI actions keyed by task type, with durable storage
// and a background eviction sweep.
package patterns

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

const (
	// maxRecentExecutions bounds the per-pattern execution history ring.
	maxRecentExecutions = 50
	// maxFailureReasons bounds the diagnostic list on each selector.
	maxFailureReasons = 10
)

// ExecutionRecord is one remembered outcome of running a pattern.
type ExecutionRecord struct {
	Timestamp time.Time          `json:"timestamp"`
	Success   bool               `json:"success"`
	Duration  time.Duration      `json:"duration"`
	Context   map[string]string  `json:"context,omitempty"`
	Error     string             `json:"error,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// UsageStats aggregates a pattern's execution history: a bounded ring of
// recent records plus running counters and timing extremes.
type UsageStats struct {
	RecentExecutions     []ExecutionRecord `json:"recentExecutions,omitempty"`
	TotalExecutions      int               `json:"totalExecutions"`
	SuccessfulExecutions int               `json:"successfulExecutions"`
	FailedExecutions     int               `json:"failedExecutions"`
	AverageExecutionTime time.Duration     `json:"averageExecutionTime"`
	MinExecutionTime     time.Duration     `json:"minExecutionTime"`
	MaxExecutionTime     time.Duration     `json:"maxExecutionTime"`
}

// record folds one outcome into the stats, dropping the oldest ring entry
// once the cap is reached.
func (u *UsageStats) record(rec ExecutionRecord) {
	u.TotalExecutions++
	if rec.Success {
		u.SuccessfulExecutions++
	} else {
		u.FailedExecutions++
	}

	if u.TotalExecutions == 1 {
		u.AverageExecutionTime = rec.Duration
		u.MinExecutionTime = rec.Duration
		u.MaxExecutionTime = rec.Duration
	} else {
		u.AverageExecutionTime = rollingAverage(u.AverageExecutionTime, u.TotalExecutions, rec.Duration)
		if rec.Duration < u.MinExecutionTime {
			u.MinExecutionTime = rec.Duration
		}
		if rec.Duration > u.MaxExecutionTime {
			u.MaxExecutionTime = rec.Duration
		}
	}

	u.RecentExecutions = append(u.RecentExecutions, rec)
	if len(u.RecentExecutions) > maxRecentExecutions {
		u.RecentExecutions = u.RecentExecutions[len(u.RecentExecutions)-maxRecentExecutions:]
	}
}

// SelectorPattern is one locator observed during execution, with its
// accumulated reliability and diagnostics.
type SelectorPattern struct {
	Locator        core.Locator `json:"locator"`
	Reliability    float64      `json:"reliability"`
	PageContext    string       `json:"pageContext,omitempty"`
	LastSuccess    time.Time    `json:"lastSuccess,omitempty"`
	FailureReasons []string     `json:"failureReasons,omitempty"`
}

// recordFailure appends a diagnostic reason, dropping the oldest once the
// cap is reached, and lowers the reliability score.
func (s *SelectorPattern) recordFailure(reason string) {
	s.FailureReasons = append(s.FailureReasons, reason)
	if len(s.FailureReasons) > maxFailureReasons {
		s.FailureReasons = s.FailureReasons[len(s.FailureReasons)-maxFailureReasons:]
	}
	s.Reliability = clamp01(s.Reliability - 0.1)
}

// recordSuccess raises the reliability score and stamps the success time.
func (s *SelectorPattern) recordSuccess(now time.Time) {
	s.Reliability = clamp01(s.Reliability + 0.05)
	s.LastSuccess = now
}

// Conditions restrict when a pattern may be selected.
type Conditions struct {
	// URLPattern matches against the page URL; "*" wildcards are allowed,
	// a plain string matches as a substring, empty matches everything.
	URLPattern string `json:"urlPattern,omitempty"`
	// PageState must equal the observed page state when set.
	PageState string `json:"pageState,omitempty"`
	// RequiredElements must all be present on the page.
	RequiredElements []string `json:"requiredElements,omitempty"`
}

// MatchesPage reports whether the page satisfies every condition.
func (c Conditions) MatchesPage(page core.PageContext) bool {
	if c.URLPattern != "" && !matchURL(c.URLPattern, page.URL) {
		return false
	}
	if c.PageState != "" && c.PageState != page.State {
		return false
	}
	for _, el := range c.RequiredElements {
		if !containsString(page.Elements, el) {
			return false
		}
	}
	return true
}

// AutomationPattern is a remembered recipe for accomplishing one task type.
type AutomationPattern struct {
	ID                      string            `json:"id"`
	TaskType                string            `json:"taskType"`
	ActionSequence          []core.ActionStep `json:"actionSequence"`
	Selectors               []SelectorPattern `json:"selectors,omitempty"`
	SuccessRate             float64           `json:"successRate"`
	Confidence              float64           `json:"confidence"`
	ExecutionCount          int               `json:"executionCount"`
	AverageExecutionTime    time.Duration     `json:"averageExecutionTime"`
	LastSuccessfulExecution time.Time         `json:"lastSuccessfulExecution,omitempty"`
	Conditions              Conditions        `json:"applicableConditions,omitempty"`
	RequiredCapabilities    []string          `json:"requiredCapabilities,omitempty"`
	Tags                    []string          `json:"tags,omitempty"`
	Priority                int               `json:"priority,omitempty"`
	CreatedDate             time.Time         `json:"createdDate"`
	LastUpdated             time.Time         `json:"lastUpdated"`
	UsageStats              UsageStats        `json:"usageStats"`

	// extra preserves fields written by newer versions so they survive a
	// load/store round trip.
	extra map[string]json.RawMessage
}

// knownPatternFields are the JSON keys this version understands; anything
// else found on load is carried in extra.
var knownPatternFields = []string{
	"id", "taskType", "actionSequence", "selectors", "successRate",
	"confidence", "executionCount", "averageExecutionTime",
	"lastSuccessfulExecution", "applicableConditions",
	"requiredCapabilities", "tags", "priority", "createdDate",
	"lastUpdated", "usageStats",
}

// ComputeID derives the deterministic pattern identity from the task type
// and the normalized (action kind, primary selector) pairs. Re-discovering
// the same recipe therefore updates the existing record instead of
// duplicating it.
func ComputeID(taskType string, steps []core.ActionStep) string {
	h := sha256.New()
	io.WriteString(h, NormalizeToken(taskType))
	for _, s := range steps {
		io.WriteString(h, "|")
		io.WriteString(h, string(s.Kind))
		io.WriteString(h, ":")
		io.WriteString(h, NormalizeToken(s.Target.Primary.Value))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// NormalizeToken trims whitespace and case-folds so that selector identity
// is insensitive to formatting and Unicode casing.
func NormalizeToken(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Validate checks the pattern's structural invariants.
func (p *AutomationPattern) Validate() error {
	if p.ID == "" {
		return errPatternInvalid("pattern id is empty")
	}
	if p.TaskType == "" {
		return errPatternInvalid("task type is empty")
	}
	if p.UsageStats.TotalExecutions == 0 {
		return errPatternInvalid("pattern has no executions")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return errPatternInvalid("confidence out of range")
	}
	if len(p.UsageStats.RecentExecutions) > maxRecentExecutions {
		return errPatternInvalid("execution history exceeds cap")
	}
	return nil
}

// Clone returns a deep copy. The store hands clones to callers so the
// in-memory index is never mutated from outside.
func (p *AutomationPattern) Clone() *AutomationPattern {
	if p == nil {
		return nil
	}

	out := *p

	out.ActionSequence = make([]core.ActionStep, len(p.ActionSequence))
	for i, step := range p.ActionSequence {
		out.ActionSequence[i] = cloneStep(step)
	}

	out.Selectors = make([]SelectorPattern, len(p.Selectors))
	for i, sel := range p.Selectors {
		out.Selectors[i] = sel
		out.Selectors[i].FailureReasons = append([]string(nil), sel.FailureReasons...)
	}

	out.RequiredCapabilities = append([]string(nil), p.RequiredCapabilities...)
	out.Tags = append([]string(nil), p.Tags...)
	out.Conditions.RequiredElements = append([]string(nil), p.Conditions.RequiredElements...)

	out.UsageStats.RecentExecutions = make([]ExecutionRecord, len(p.UsageStats.RecentExecutions))
	for i, rec := range p.UsageStats.RecentExecutions {
		out.UsageStats.RecentExecutions[i] = cloneRecord(rec)
	}

	if p.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			out.extra[k] = append(json.RawMessage(nil), v...)
		}
	}

	return &out
}

func cloneStep(step core.ActionStep) core.ActionStep {
	out := step
	out.Target.Fallbacks = append([]core.Locator(nil), step.Target.Fallbacks...)
	if step.Params != nil {
		out.Params = make(map[string]string, len(step.Params))
		for k, v := range step.Params {
			out.Params[k] = v
		}
	}
	return out
}

func cloneRecord(rec ExecutionRecord) ExecutionRecord {
	out := rec
	if rec.Context != nil {
		out.Context = make(map[string]string, len(rec.Context))
		for k, v := range rec.Context {
			out.Context[k] = v
		}
	}
	if rec.Metrics != nil {
		out.Metrics = make(map[string]float64, len(rec.Metrics))
		for k, v := range rec.Metrics {
			out.Metrics[k] = v
		}
	}
	return out
}

// MarshalJSON emits the known fields plus any preserved unknown fields.
func (p AutomationPattern) MarshalJSON() ([]byte, error) {
	type alias AutomationPattern
	data, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}

	if len(p.extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the known fields and stashes everything else so a
// newer version's fields survive the round trip.
func (p *AutomationPattern) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type alias AutomationPattern
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = AutomationPattern(a)

	for _, k := range knownPatternFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		p.extra = raw
	}
	return nil
}

func matchURL(pattern, url string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(url, pattern)
	}

	// Wildcard segments must appear in order
	parts := strings.Split(pattern, "*")
	rest := url
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		// Anchored start unless the pattern begins with a wildcard
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	// Anchored end unless the pattern ends with a wildcard
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(url, last) {
		return false
	}
	return true
}

func errPatternInvalid(msg string) error {
	return errors.New(errors.ValidationFailed, msg)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
