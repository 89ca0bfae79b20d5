package strategy

import (
	"context"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

// Position is the coordinate-grid fallback slot. It holds the last place
// in the chain but has no implementation yet; executing it reports
// NotImplemented so the controller records an honest attempt instead of
// silently skipping the slot.
type Position struct{}

func NewPosition() *Position { return &Position{} }

func (p *Position) Kind() core.StrategyKind { return core.StrategyPosition }

func (p *Position) Execute(ctx context.Context, task *core.Task, budget *Budget) (*Result, error) {
	return nil, errors.New(errors.NotImplemented, "position-based execution is not implemented")
}
