package core

import (
	"time"

	"github.com/google/uuid"
)

// StrategyKind names one of the alternative execution methods.
type StrategyKind string

const (
	StrategyDirect   StrategyKind = "direct"
	StrategyLearned  StrategyKind = "learned-pattern"
	StrategyVision   StrategyKind = "vision"
	StrategyPosition StrategyKind = "position"
)

// Task is one interpreted unit of work against the CRM UI.
type Task struct {
	// Type keys the pattern store; runs of the same type share learning.
	Type string
	// Description is the natural-language statement of the task,
	// used by the vision strategy and for diagnostics.
	Description string
	// SuccessCriteria tells the completion verifier what "done" looks like.
	SuccessCriteria string
	// Steps are the pre-interpreted primitive actions for the direct strategy.
	Steps []ActionStep
	// EstimatedClicks bounds the vision loop together with the budget.
	EstimatedClicks int
	// Page is the context the task starts from, used to gate pattern selection.
	Page PageContext
}

// PageContext describes the page a task executes against.
type PageContext struct {
	URL      string   `json:"url,omitempty"`
	State    string   `json:"state,omitempty"`
	Elements []string `json:"elements,omitempty"`
}

// TraceStep records one performed action and its outcome.
type TraceStep struct {
	Step     ActionStep    `json:"step"`
	Locator  Locator       `json:"locator"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// StrategyAttempt preserves why one strategy failed, for diagnostics.
type StrategyAttempt struct {
	Strategy     StrategyKind `json:"strategy"`
	FailureCode  string       `json:"failureCode,omitempty"`
	Failure      string       `json:"failure,omitempty"`
	Interactions int          `json:"interactions"`
	Screenshot   string       `json:"screenshot,omitempty"`
}

// TaskResult is the outcome envelope returned to the caller.
type TaskResult struct {
	RunID        string            `json:"runId"`
	Success      bool              `json:"success"`
	StrategyUsed StrategyKind      `json:"strategyUsed,omitempty"`
	Trace        []TraceStep       `json:"trace,omitempty"`
	Attempts     []StrategyAttempt `json:"attempts,omitempty"`
	Interactions int               `json:"interactions"`
	Duration     time.Duration     `json:"duration"`
	Err          error             `json:"-"`
}

// NewRunID returns a fresh identifier for one task execution.
func NewRunID() string {
	return uuid.NewString()
}
