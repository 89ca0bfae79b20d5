// Package testutil provides shared fakes and mocks for executor and
// perception dependencies.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

// FakeExecutor is a scripted core.ActionExecutor. Actions succeed and are
// recorded unless their locator is registered as failing.
type FakeExecutor struct {
	mu        sync.Mutex
	performed []core.Action
	failing   map[string]error
	failAll   error
	shots     int
	shotErr   error

	// PageURL is reported on screenshots.
	PageURL string
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{failing: make(map[string]error)}
}

// FailSelector makes every action against the locator value fail with a
// resolution error.
func (f *FakeExecutor) FailSelector(value, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[value] = errors.WithFields(
		errors.New(errors.ResolutionFailed, reason),
		errors.Fields{"selector": value})
}

// FailAll makes every action fail with the given error.
func (f *FakeExecutor) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

// FailScreenshots makes Screenshot return the given error.
func (f *FakeExecutor) FailScreenshots(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shotErr = err
}

func (f *FakeExecutor) Perform(ctx context.Context, action core.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failing[action.Locator.Value]; ok {
		return err
	}
	f.performed = append(f.performed, action)
	return nil
}

func (f *FakeExecutor) Screenshot(ctx context.Context, label string) (*core.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shotErr != nil {
		return nil, f.shotErr
	}
	f.shots++
	return &core.Screenshot{
		Data: []byte("fake-png"),
		URL:  f.PageURL,
		Ref:  fmt.Sprintf("%s-%d.png", label, f.shots),
	}, nil
}

// Performed returns a copy of the successfully executed actions.
func (f *FakeExecutor) Performed() []core.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Action(nil), f.performed...)
}

// Screenshots returns how many screenshots were taken.
func (f *FakeExecutor) Screenshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shots
}

// FakePerception is a scripted core.Perception. Locations are looked up
// by description, proposed actions pop from a queue, and completion
// answers pop from another.
type FakePerception struct {
	mu sync.Mutex

	Located     map[string]core.Locator
	Proposals   []core.ProposedAction
	Completions []bool

	proposalIdx   int
	completionIdx int

	LocateErr error
	NextErr   error
	VerifyErr error
}

func NewFakePerception() *FakePerception {
	return &FakePerception{Located: make(map[string]core.Locator)}
}

func (f *FakePerception) Locate(ctx context.Context, description string, shot *core.Screenshot) (*core.Locator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LocateErr != nil {
		return nil, f.LocateErr
	}
	loc, ok := f.Located[description]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (f *FakePerception) NextAction(ctx context.Context, shot *core.Screenshot, goal string) (*core.ProposedAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NextErr != nil {
		return nil, f.NextErr
	}
	if f.proposalIdx >= len(f.Proposals) {
		return nil, nil
	}
	proposed := f.Proposals[f.proposalIdx]
	f.proposalIdx++
	return &proposed, nil
}

func (f *FakePerception) VerifyCompletion(ctx context.Context, taskDescription, successCriteria string, shot *core.Screenshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VerifyErr != nil {
		return false, f.VerifyErr
	}
	if f.completionIdx >= len(f.Completions) {
		return false, nil
	}
	done := f.Completions[f.completionIdx]
	f.completionIdx++
	return done, nil
}

// MockExecutor is a strict testify mock for core.ActionExecutor.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Perform(ctx context.Context, action core.Action) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockExecutor) Screenshot(ctx context.Context, label string) (*core.Screenshot, error) {
	args := m.Called(ctx, label)
	if shot := args.Get(0); shot != nil {
		return shot.(*core.Screenshot), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPerception is a strict testify mock for core.Perception.
type MockPerception struct {
	mock.Mock
}

func (m *MockPerception) Locate(ctx context.Context, description string, shot *core.Screenshot) (*core.Locator, error) {
	args := m.Called(ctx, description, shot)
	if loc := args.Get(0); loc != nil {
		return loc.(*core.Locator), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPerception) NextAction(ctx context.Context, shot *core.Screenshot, goal string) (*core.ProposedAction, error) {
	args := m.Called(ctx, shot, goal)
	if proposed := args.Get(0); proposed != nil {
		return proposed.(*core.ProposedAction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPerception) VerifyCompletion(ctx context.Context, taskDescription, successCriteria string, shot *core.Screenshot) (bool, error) {
	args := m.Called(ctx, taskDescription, successCriteria, shot)
	return args.Bool(0), args.Error(1)
}
