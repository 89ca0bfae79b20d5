package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rote-dev/rote-go/internal/testutil"
	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

func proposal(selector string) core.ProposedAction {
	return core.ProposedAction{
		Kind:       core.ActionClick,
		Locator:    core.Locator{Value: selector, Kind: core.LocatorStructural},
		Confidence: 0.9,
		Reasoning:  "the element matches the goal",
	}
}

func TestVisionCompletesTask(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()
	perception.Proposals = []core.ProposedAction{proposal("#next"), proposal("#done")}
	perception.Completions = []bool{false, true}

	v := NewVision(exec, perception, 10)
	task := lookupTask()
	task.EstimatedClicks = 5

	res, err := v.Execute(context.Background(), task, NewBudget(10))
	require.NoError(t, err)

	require.Len(t, res.Trace, 2)
	assert.Equal(t, "#next", res.Trace[0].Locator.Value)
	assert.Equal(t, "#done", res.Trace[1].Locator.Value)
	assert.Len(t, exec.Performed(), 2)
	// One screenshot to propose and one to verify, per iteration
	assert.Equal(t, 4, exec.Screenshots())
}

func TestVisionStepLimit(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()
	perception.Proposals = []core.ProposedAction{
		proposal("#a"), proposal("#b"), proposal("#c"), proposal("#d"),
	}

	v := NewVision(exec, perception, 10)
	task := lookupTask()
	task.EstimatedClicks = 2

	_, err := v.Execute(context.Background(), task, NewBudget(10))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.VerificationFailed))
	assert.Len(t, exec.Performed(), 2, "the loop stops at the estimated click count")
}

func TestVisionCeilingBoundsEstimate(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()
	perception.Proposals = []core.ProposedAction{
		proposal("#a"), proposal("#b"), proposal("#c"), proposal("#d"),
	}

	v := NewVision(exec, perception, 3)
	task := lookupTask()
	task.EstimatedClicks = 50

	_, err := v.Execute(context.Background(), task, NewBudget(10))
	require.Error(t, err)
	assert.Len(t, exec.Performed(), 3, "the configured ceiling wins over a large estimate")
}

func TestVisionEarlyExit(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()
	perception.Completions = []bool{true}

	v := NewVision(exec, perception, 10)
	res, err := v.Execute(context.Background(), lookupTask(), NewBudget(10))
	require.NoError(t, err)
	assert.Empty(t, res.Trace, "nothing to do when the page is already in the goal state")
	assert.Empty(t, exec.Performed())
}

func TestVisionNoProposalNotComplete(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()

	v := NewVision(exec, perception, 10)
	_, err := v.Execute(context.Background(), lookupTask(), NewBudget(10))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.VerificationFailed))
}

func TestVisionWithoutPerception(t *testing.T) {
	v := NewVision(testutil.NewFakeExecutor(), nil, 10)

	_, err := v.Execute(context.Background(), lookupTask(), NewBudget(10))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.PerceptionFailed))
}

func TestVisionPerceptionError(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()
	perception.NextErr = errors.New(errors.PerceptionFailed, "model unavailable")

	v := NewVision(exec, perception, 10)
	_, err := v.Execute(context.Background(), lookupTask(), NewBudget(10))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.PerceptionFailed))
}

func TestVisionBudgetAbort(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	perception := testutil.NewFakePerception()
	perception.Proposals = []core.ProposedAction{proposal("#a"), proposal("#b"), proposal("#c")}

	v := NewVision(exec, perception, 10)
	task := lookupTask()
	task.EstimatedClicks = 3

	_, err := v.Execute(context.Background(), task, NewBudget(2))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.BudgetExceeded))
	assert.Len(t, exec.Performed(), 2)
}
