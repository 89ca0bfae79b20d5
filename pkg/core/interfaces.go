package core

import (
	"context"
	"time"
)

// Screenshot is a captured page image plus where it came from.
type Screenshot struct {
	Data    []byte
	URL     string
	TakenAt time.Time
	// Ref is the opaque reference assigned by whatever stored the image,
	// empty if the capture was not persisted.
	Ref string
}

// ActionExecutor performs primitive browser actions. Implementations wrap a
// real browser session; tests substitute scripted fakes.
type ActionExecutor interface {
	// Perform executes one primitive action. A resolution or interaction
	// failure is reported as an error; the caller decides whether it is
	// strategy-local or fatal.
	Perform(ctx context.Context, action Action) error

	// Screenshot captures the current page, labeled for later diagnosis.
	Screenshot(ctx context.Context, label string) (*Screenshot, error)
}

// ProposedAction is Perception's answer to "what should happen next".
type ProposedAction struct {
	Kind       ActionKind
	Locator    Locator
	Value      string
	Confidence float64
	Reasoning  string
}

// Perception proposes locators and next actions from page screenshots.
type Perception interface {
	// Locate proposes a locator for a natural-language element description.
	// A nil locator with nil error means "no proposal", which callers treat
	// as an ordinary miss rather than a failure.
	Locate(ctx context.Context, description string, shot *Screenshot) (*Locator, error)

	// NextAction proposes the single next primitive action toward the goal.
	NextAction(ctx context.Context, shot *Screenshot, goal string) (*ProposedAction, error)

	// VerifyCompletion decides whether the task is satisfied on the
	// current page.
	VerifyCompletion(ctx context.Context, taskDescription, successCriteria string, shot *Screenshot) (bool, error)
}
