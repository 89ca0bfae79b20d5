package strategy

import (
	"context"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

// Direct executes the task's pre-interpreted steps as-is. It is the
// cheapest approach: no model calls unless a step names its target in
// natural language instead of a selector.
type Direct struct {
	exec       core.ActionExecutor
	perception core.Perception
	logger     *logging.Logger
}

// NewDirect creates the direct strategy. perception may be nil; steps
// without a concrete locator then fail instead of being located visually.
func NewDirect(exec core.ActionExecutor, perception core.Perception) *Direct {
	return &Direct{exec: exec, perception: perception, logger: logging.GetLogger()}
}

func (d *Direct) Kind() core.StrategyKind { return core.StrategyDirect }

func (d *Direct) Execute(ctx context.Context, task *core.Task, budget *Budget) (*Result, error) {
	if len(task.Steps) == 0 {
		return nil, errors.New(errors.ResolutionFailed, "task provides no concrete steps")
	}

	result := &Result{}
	for i, step := range task.Steps {
		locator, err := d.resolveTarget(ctx, step)
		if err != nil {
			return result, err
		}

		ts, err := perform(ctx, d.exec, budget, step, locator)
		result.Trace = append(result.Trace, ts)
		if err != nil {
			if errors.HasCode(err, errors.BudgetExceeded) {
				return result, err
			}
			return result, errors.WithFields(
				errors.Wrap(err, errors.StepExecutionFailed, "step failed"),
				errors.Fields{"step": i, "kind": string(step.Kind)})
		}
	}

	return result, nil
}

// resolveTarget picks the locator for a step. Steps that carry a selector
// use it directly; description-only steps ask perception to find the
// element on a fresh screenshot.
func (d *Direct) resolveTarget(ctx context.Context, step core.ActionStep) (core.Locator, error) {
	if !step.Target.Primary.IsZero() {
		return step.Target.Primary, nil
	}
	if !needsTarget(step.Kind) {
		return core.Locator{}, nil
	}
	if step.Target.Description == "" {
		return core.Locator{}, errors.New(errors.ResolutionFailed, "step has neither selector nor description")
	}
	if d.perception == nil {
		return core.Locator{}, errors.WithFields(
			errors.New(errors.ResolutionFailed, "no perception backend to locate described target"),
			errors.Fields{"description": step.Target.Description})
	}

	shot, err := d.exec.Screenshot(ctx, "locate")
	if err != nil {
		return core.Locator{}, errors.Wrap(err, errors.ResolutionFailed, "failed to capture screenshot for location")
	}

	loc, err := d.perception.Locate(ctx, step.Target.Description, shot)
	if err != nil {
		return core.Locator{}, errors.Wrap(err, errors.ResolutionFailed, "visual location failed")
	}
	if loc == nil {
		return core.Locator{}, errors.WithFields(
			errors.New(errors.ResolutionFailed, "described target not found on page"),
			errors.Fields{"description": step.Target.Description})
	}

	d.logger.Debug(ctx, "located %q as %s locator %q", step.Target.Description, loc.Kind, loc.Value)
	return *loc, nil
}

// needsTarget reports whether the action is meaningless without a target
// element. Navigation takes a URL in Value and waits may be pure delays.
func needsTarget(kind core.ActionKind) bool {
	switch kind {
	case core.ActionNavigate, core.ActionWait, core.ActionVerify:
		return false
	default:
		return true
	}
}
