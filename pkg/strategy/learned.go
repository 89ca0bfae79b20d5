package strategy

import (
	"context"
	"fmt"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

// Learned replays the best stored pattern for the task type. Per step it
// tries the primary locator first and then each fallback; the first one
// that performs wins. A step with no working locator fails the strategy
// and reports which selectors let it down.
type Learned struct {
	store  *patterns.Store
	exec   core.ActionExecutor
	logger *logging.Logger
}

func NewLearned(store *patterns.Store, exec core.ActionExecutor) *Learned {
	return &Learned{store: store, exec: exec, logger: logging.GetLogger()}
}

func (l *Learned) Kind() core.StrategyKind { return core.StrategyLearned }

func (l *Learned) Execute(ctx context.Context, task *core.Task, budget *Budget) (*Result, error) {
	if l.store == nil {
		return nil, errors.New(errors.ResolutionFailed, "no pattern store configured")
	}

	p, err := l.store.BestPattern(ctx, task.Type, task.Page)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.WithFields(
			errors.New(errors.ResolutionFailed, "no applicable stored pattern"),
			errors.Fields{"task_type": task.Type})
	}

	l.logger.Info(ctx, "replaying pattern %s (success rate %.2f over %d runs)",
		p.ID, p.SuccessRate, p.ExecutionCount)

	result := &Result{
		PatternID:        p.ID,
		SelectorFailures: make(map[string]string),
	}

	for i, step := range p.ActionSequence {
		ts, err := l.performStep(ctx, result, budget, step)
		result.Trace = append(result.Trace, ts)
		if err != nil {
			if errors.HasCode(err, errors.BudgetExceeded) {
				return result, err
			}
			return result, errors.WithFields(
				errors.Wrap(err, errors.ResolutionFailed, "pattern step failed"),
				errors.Fields{"step": i, "pattern_id": p.ID})
		}
	}

	return result, nil
}

// performStep walks the step's locator candidates until one performs.
func (l *Learned) performStep(ctx context.Context, result *Result, budget *Budget, step core.ActionStep) (core.TraceStep, error) {
	candidates := step.Target.Candidates()
	if len(candidates) == 0 {
		if !needsTarget(step.Kind) {
			return perform(ctx, l.exec, budget, step, core.Locator{})
		}
		return core.TraceStep{Step: step}, errors.New(errors.ResolutionFailed, "pattern step has no locator")
	}

	var lastTS core.TraceStep
	var lastErr error
	for _, candidate := range candidates {
		ts, err := perform(ctx, l.exec, budget, step, candidate)
		if err == nil {
			result.SelectorSuccesses = append(result.SelectorSuccesses, candidate.Value)
			return ts, nil
		}
		if errors.HasCode(err, errors.BudgetExceeded) {
			return ts, err
		}

		l.logger.Debug(ctx, "locator %q failed: %v", candidate.Value, err)
		result.SelectorFailures[candidate.Value] = err.Error()
		lastTS, lastErr = ts, err
	}

	return lastTS, errors.Wrap(lastErr, errors.ResolutionFailed,
		fmt.Sprintf("all %d locators failed", len(candidates)))
}
