package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

const (
	defaultMaxInteractions   = 25
	defaultPromoteConfidence = 0.6
)

// DefaultOrder is the strategy chain from cheapest to most expensive.
func DefaultOrder() []core.StrategyKind {
	return []core.StrategyKind{
		core.StrategyDirect,
		core.StrategyLearned,
		core.StrategyVision,
		core.StrategyPosition,
	}
}

// Controller runs tasks through the strategy chain. Strategies are tried
// in order until one completes the task; every attempt shares one
// interaction budget, and every outcome feeds the pattern store.
type Controller struct {
	exec       core.ActionExecutor
	perception core.Perception
	store      *patterns.Store
	logger     *logging.Logger

	order             []core.StrategyKind
	strategies        map[core.StrategyKind]Strategy
	maxInteractions   int
	promoteConfidence float64
	failureShots      bool
	feedback          *Feedback
}

// Option customizes controller construction.
type Option func(*Controller)

// WithMaxInteractions caps the per-task interaction budget.
func WithMaxInteractions(n int) Option {
	return func(c *Controller) { c.maxInteractions = n }
}

// WithPromoteConfidence sets the confidence a stored pattern needs before
// the learned strategy jumps to the front of the chain.
func WithPromoteConfidence(threshold float64) Option {
	return func(c *Controller) { c.promoteConfidence = threshold }
}

// WithOrder overrides the default strategy order.
func WithOrder(kinds ...core.StrategyKind) Option {
	return func(c *Controller) { c.order = kinds }
}

// WithFailureScreenshots toggles the debug screenshot taken when a
// strategy fails.
func WithFailureScreenshots(enabled bool) Option {
	return func(c *Controller) { c.failureShots = enabled }
}

// WithLogger replaces the default global logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController wires the strategy chain. perception and store may be
// nil: without perception the vision strategy refuses to run, and without
// a store nothing is learned or replayed.
func NewController(exec core.ActionExecutor, perception core.Perception, store *patterns.Store, opts ...Option) (*Controller, error) {
	if exec == nil {
		return nil, errors.New(errors.InvalidInput, "controller requires an action executor")
	}

	c := &Controller{
		exec:              exec,
		perception:        perception,
		store:             store,
		logger:            logging.GetLogger(),
		order:             DefaultOrder(),
		strategies:        make(map[core.StrategyKind]Strategy),
		maxInteractions:   defaultMaxInteractions,
		promoteConfidence: defaultPromoteConfidence,
		failureShots:      true,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Register(NewDirect(exec, perception))
	c.Register(NewLearned(store, exec))
	c.Register(NewVision(exec, perception, c.maxInteractions))
	c.Register(NewPosition())
	c.feedback = NewFeedback(store)

	return c, nil
}

// Register adds or replaces the strategy for its kind.
func (c *Controller) Register(s Strategy) {
	c.strategies[s.Kind()] = s
}

// Run executes the task through the strategy chain. The returned result
// is non-nil even on failure and carries the full attempt history; the
// error mirrors result.Err for callers that prefer error handling.
func (c *Controller) Run(ctx context.Context, task *core.Task) (*core.TaskResult, error) {
	if task == nil || task.Type == "" {
		return nil, errors.New(errors.InvalidInput, "task with a task type is required")
	}

	runID := core.NewRunID()
	ctx = logging.WithTaskID(ctx, task.Type)
	ctx = logging.WithRunID(ctx, runID)

	budget := NewBudget(c.maxInteractions)
	order := c.planOrder(ctx, task)
	start := time.Now()

	result := &core.TaskResult{RunID: runID}
	var used *Result
	var lastErr error

	for _, kind := range order {
		strat, ok := c.strategies[kind]
		if !ok {
			continue
		}

		sctx := logging.WithStrategy(ctx, string(kind))
		c.logger.Info(sctx, "attempting strategy (budget %d/%d used)", budget.Used(), c.maxInteractions)

		before := budget.Used()
		res, err := strat.Execute(sctx, task, budget)
		if res != nil && res.PatternID != "" {
			used = res
		}

		if err == nil {
			result.Success = true
			result.StrategyUsed = kind
			if res != nil {
				result.Trace = res.Trace
			}
			result.Interactions = budget.Used()
			result.Duration = time.Since(start)
			c.logger.Info(sctx, "task succeeded after %d interactions", result.Interactions)
			c.feedback.RecordSuccess(ctx, task, result, res)
			if used != nil && used != res {
				// A replayed pattern failed earlier in this run even
				// though another strategy completed the task
				c.feedback.RecordFailure(ctx, task, result, used)
			}
			return result, nil
		}

		lastErr = err
		attempt := core.StrategyAttempt{
			Strategy:     kind,
			FailureCode:  errors.CodeOf(err).String(),
			Failure:      err.Error(),
			Interactions: budget.Used() - before,
		}
		if c.failureShots {
			if shot, serr := c.exec.Screenshot(sctx, fmt.Sprintf("failed-%s", kind)); serr == nil && shot != nil {
				attempt.Screenshot = shot.Ref
			}
		}
		result.Attempts = append(result.Attempts, attempt)
		c.logger.Warn(sctx, "strategy failed: %v", err)

		if errors.HasCode(err, errors.BudgetExceeded) {
			// The budget is shared; nothing later in the chain can run
			break
		}
	}

	result.Interactions = budget.Used()
	result.Duration = time.Since(start)

	if lastErr == nil {
		lastErr = errors.New(errors.StrategiesExhausted, "no strategies available for task")
	} else if !errors.HasCode(lastErr, errors.BudgetExceeded) {
		lastErr = errors.WithFields(
			errors.Wrap(lastErr, errors.StrategiesExhausted,
				fmt.Sprintf("all %d strategies failed", len(result.Attempts))),
			errors.Fields{"task_type": task.Type})
	}
	result.Err = lastErr

	c.feedback.RecordFailure(ctx, task, result, used)
	return result, lastErr
}

// planOrder applies learned-pattern promotion: when a stored pattern is
// trusted enough, replaying it beats re-deriving the task from scratch.
func (c *Controller) planOrder(ctx context.Context, task *core.Task) []core.StrategyKind {
	order := append([]core.StrategyKind(nil), c.order...)
	if c.store == nil {
		return order
	}

	best, err := c.store.BestPattern(ctx, task.Type, task.Page)
	if err != nil || best == nil {
		return order
	}
	if best.Confidence < c.promoteConfidence {
		return order
	}

	promoted := make([]core.StrategyKind, 0, len(order)+1)
	promoted = append(promoted, core.StrategyLearned)
	for _, kind := range order {
		if kind != core.StrategyLearned {
			promoted = append(promoted, kind)
		}
	}
	c.logger.Info(ctx, "promoting learned pattern %s (confidence %.2f)", best.ID, best.Confidence)
	return promoted
}
