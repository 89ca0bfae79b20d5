package strategy

import (
	"context"
	"net/url"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/logging"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

// Feedback closes the learning loop: successful runs become stored
// patterns, and every run that replayed a pattern updates that pattern's
// record, win or lose. Learning failures are logged and swallowed; they
// must never turn a completed task into a failure.
type Feedback struct {
	store  *patterns.Store
	logger *logging.Logger
}

func NewFeedback(store *patterns.Store) *Feedback {
	return &Feedback{store: store, logger: logging.GetLogger()}
}

// RecordSuccess folds a successful run into the store. When the run was
// itself a pattern replay, the dedupe on the derived id folds the outcome
// into that same pattern rather than double-counting it.
func (f *Feedback) RecordSuccess(ctx context.Context, task *core.Task, result *core.TaskResult, res *Result) {
	if f.store == nil || res == nil {
		return
	}

	outcome := patterns.Outcome{
		Success:           true,
		Duration:          result.Duration,
		Context:           runContext(task, result),
		SelectorSuccesses: selectorSuccesses(res),
		SelectorFailures:  res.SelectorFailures,
	}

	steps, selectors := normalizeTrace(res.Trace)
	storedID := ""
	if len(steps) > 0 {
		id, err := f.store.StorePattern(ctx, task.Type, steps, selectors,
			conditionsFor(task), outcome, string(result.StrategyUsed))
		if err != nil {
			f.logger.Warn(ctx, "failed to learn from successful run: %v", err)
		} else {
			storedID = id
		}
	}

	if res.PatternID != "" && res.PatternID != storedID {
		if err := f.store.UpdateAfterExecution(ctx, res.PatternID, outcome); err != nil {
			f.logger.Warn(ctx, "failed to update replayed pattern %s: %v", res.PatternID, err)
		}
	}
}

// RecordFailure updates the replayed pattern after a failed run. Runs
// that used no stored pattern leave nothing to update.
func (f *Feedback) RecordFailure(ctx context.Context, task *core.Task, result *core.TaskResult, used *Result) {
	if f.store == nil || used == nil || used.PatternID == "" {
		return
	}

	outcome := patterns.Outcome{
		Success:           false,
		Duration:          result.Duration,
		Context:           runContext(task, result),
		SelectorSuccesses: selectorSuccesses(used),
		SelectorFailures:  used.SelectorFailures,
	}
	if result.Err != nil {
		outcome.Error = result.Err.Error()
	} else {
		// The task recovered via another strategy; keep the replay's
		// own failure reason from the attempt record
		for _, a := range result.Attempts {
			if a.Strategy == core.StrategyLearned {
				outcome.Error = a.Failure
				break
			}
		}
	}

	if err := f.store.UpdateAfterExecution(ctx, used.PatternID, outcome); err != nil {
		f.logger.Warn(ctx, "failed to update replayed pattern %s: %v", used.PatternID, err)
	}
}

// normalizeTrace turns an executed trace into a storable recipe: one step
// per performed action, each step's primary locator being the one that
// actually worked, plus the deduplicated selector list.
func normalizeTrace(trace []core.TraceStep) ([]core.ActionStep, []patterns.SelectorPattern) {
	var steps []core.ActionStep
	var selectors []patterns.SelectorPattern
	seen := make(map[string]bool)

	for _, ts := range trace {
		if !ts.Success {
			// An incomplete recipe would collide with nothing useful
			return nil, nil
		}

		step := ts.Step
		if step.Target.Primary.IsZero() && !ts.Locator.IsZero() {
			step.Target.Primary = ts.Locator
		}
		step.SuccessRate = 1.0
		steps = append(steps, step)

		if ts.Locator.IsZero() {
			continue
		}
		key := patterns.NormalizeToken(ts.Locator.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		selectors = append(selectors, patterns.SelectorPattern{
			Locator:     ts.Locator,
			Reliability: 1.0,
		})
	}

	return steps, selectors
}

// selectorSuccesses prefers the strategy's explicit report and falls back
// to the locators recorded in the trace.
func selectorSuccesses(res *Result) []string {
	if len(res.SelectorSuccesses) > 0 {
		return res.SelectorSuccesses
	}
	var values []string
	for _, ts := range res.Trace {
		if ts.Success && !ts.Locator.IsZero() {
			values = append(values, ts.Locator.Value)
		}
	}
	return values
}

// conditionsFor captures where the recipe is known to work. The host is
// recorded rather than the full URL so record ids and query strings do
// not pin the pattern to one page visit.
func conditionsFor(task *core.Task) patterns.Conditions {
	conds := patterns.Conditions{PageState: task.Page.State}
	if task.Page.URL != "" {
		if u, err := url.Parse(task.Page.URL); err == nil && u.Host != "" {
			conds.URLPattern = u.Host
		}
	}
	return conds
}

func runContext(task *core.Task, result *core.TaskResult) map[string]string {
	ctx := map[string]string{"run_id": result.RunID}
	if task.Page.URL != "" {
		ctx["url"] = task.Page.URL
	}
	if result.StrategyUsed != "" {
		ctx["strategy"] = string(result.StrategyUsed)
	}
	return ctx
}
