package strategy

import (
	"context"
	"fmt"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

// Vision drives the task from screenshots alone: look at the page, ask
// the model for the next action, perform it, check whether the task is
// done. The loop is bounded by the smaller of the task's estimated clicks
// and the configured ceiling, on top of the shared budget.
type Vision struct {
	exec       core.ActionExecutor
	perception core.Perception
	maxSteps   int
	logger     *logging.Logger
}

func NewVision(exec core.ActionExecutor, perception core.Perception, maxSteps int) *Vision {
	return &Vision{exec: exec, perception: perception, maxSteps: maxSteps, logger: logging.GetLogger()}
}

func (v *Vision) Kind() core.StrategyKind { return core.StrategyVision }

func (v *Vision) Execute(ctx context.Context, task *core.Task, budget *Budget) (*Result, error) {
	if v.perception == nil {
		return nil, errors.New(errors.PerceptionFailed, "vision strategy requires a perception backend")
	}

	limit := v.maxSteps
	if task.EstimatedClicks > 0 && task.EstimatedClicks < limit {
		limit = task.EstimatedClicks
	}
	if limit <= 0 {
		return nil, errors.New(errors.InvalidInput, "vision step limit is zero")
	}

	goal := task.Description
	if task.SuccessCriteria != "" {
		goal = fmt.Sprintf("%s (done when: %s)", task.Description, task.SuccessCriteria)
	}

	result := &Result{}
	for i := 0; i < limit; i++ {
		shot, err := v.exec.Screenshot(ctx, fmt.Sprintf("vision-step-%d", i))
		if err != nil {
			return result, errors.Wrap(err, errors.PerceptionFailed, "failed to capture screenshot")
		}

		proposed, err := v.perception.NextAction(ctx, shot, goal)
		if err != nil {
			return result, errors.Wrap(err, errors.PerceptionFailed, "next-action proposal failed")
		}
		if proposed == nil {
			// The model believes the task is already complete
			return v.verify(ctx, task, result)
		}

		v.logger.Debug(ctx, "vision proposes %s on %q (confidence %.2f): %s",
			proposed.Kind, proposed.Locator.Value, proposed.Confidence, proposed.Reasoning)

		step := core.ActionStep{
			Kind:   proposed.Kind,
			Target: core.TargetDescriptor{Primary: proposed.Locator},
			Value:  proposed.Value,
		}
		ts, err := perform(ctx, v.exec, budget, step, proposed.Locator)
		result.Trace = append(result.Trace, ts)
		if err != nil {
			if errors.HasCode(err, errors.BudgetExceeded) {
				return result, err
			}
			return result, errors.Wrap(err, errors.StepExecutionFailed, "proposed action failed")
		}

		done, err := v.checkCompletion(ctx, task, i)
		if err != nil {
			return result, err
		}
		if done {
			return result, nil
		}
	}

	return result, errors.WithFields(
		errors.New(errors.VerificationFailed, "task did not complete within the step limit"),
		errors.Fields{"limit": limit})
}

// verify runs one final completion check for the early-exit path.
func (v *Vision) verify(ctx context.Context, task *core.Task, result *Result) (*Result, error) {
	shot, err := v.exec.Screenshot(ctx, "vision-verify")
	if err != nil {
		return result, errors.Wrap(err, errors.PerceptionFailed, "failed to capture verification screenshot")
	}
	done, err := v.perception.VerifyCompletion(ctx, task.Description, task.SuccessCriteria, shot)
	if err != nil {
		return result, errors.Wrap(err, errors.PerceptionFailed, "completion verification failed")
	}
	if !done {
		return result, errors.New(errors.VerificationFailed, "model proposed no action but the task is not complete")
	}
	return result, nil
}

func (v *Vision) checkCompletion(ctx context.Context, task *core.Task, step int) (bool, error) {
	shot, err := v.exec.Screenshot(ctx, fmt.Sprintf("vision-check-%d", step))
	if err != nil {
		return false, errors.Wrap(err, errors.PerceptionFailed, "failed to capture verification screenshot")
	}
	done, err := v.perception.VerifyCompletion(ctx, task.Description, task.SuccessCriteria, shot)
	if err != nil {
		return false, errors.Wrap(err, errors.PerceptionFailed, "completion verification failed")
	}
	return done, nil
}
