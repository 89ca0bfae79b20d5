// Package strategy implements progressive enhancement for browser task
// execution: an ordered chain of approaches from cheap deterministic
// steps to vision-guided exploration, sharing one interaction budget.
package strategy

import (
	"context"
	"time"

	"github.com/rote-dev/rote-go/pkg/core"
)

// Result is what a strategy hands back on completion. A failing strategy
// may still return a partial result so the controller can feed pattern
// usage and selector diagnostics back into the store.
type Result struct {
	// Trace records the steps that actually ran, in order.
	Trace []core.TraceStep

	// PatternID is set when the attempt was driven by a stored pattern.
	PatternID string

	// SelectorSuccesses and SelectorFailures record how individual
	// locators behaved, keyed by locator value.
	SelectorSuccesses []string
	SelectorFailures  map[string]string
}

// Strategy is one approach to executing a task. Execute returns nil error
// only when the whole task completed; the shared budget keeps any single
// strategy from burning more interactions than the task allows.
type Strategy interface {
	Kind() core.StrategyKind
	Execute(ctx context.Context, task *core.Task, budget *Budget) (*Result, error)
}

// perform spends budget for interacting actions, runs the action, and
// returns the trace step describing what happened.
func perform(ctx context.Context, exec core.ActionExecutor, budget *Budget, step core.ActionStep, locator core.Locator) (core.TraceStep, error) {
	ts := core.TraceStep{Step: step, Locator: locator}

	action := core.Action{
		Kind:    step.Kind,
		Locator: locator,
		Value:   step.Value,
		Timeout: step.Timeout,
	}

	if isInteraction(step.Kind) {
		if err := budget.Spend(); err != nil {
			ts.Error = err.Error()
			return ts, err
		}
	}

	start := time.Now()
	err := exec.Perform(ctx, action)
	ts.Duration = time.Since(start)
	if err != nil {
		ts.Error = err.Error()
		return ts, err
	}

	ts.Success = true
	return ts, nil
}

// isInteraction reports whether the action counts against the budget.
// Waiting and verifying only observe the page.
func isInteraction(kind core.ActionKind) bool {
	switch kind {
	case core.ActionClick, core.ActionFill, core.ActionSelect, core.ActionNavigate:
		return true
	default:
		return false
	}
}
