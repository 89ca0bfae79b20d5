package strategy

import (
	"sync"

	"github.com/rote-dev/rote-go/pkg/errors"
)

// Budget is the task-scoped interaction allowance. Every strategy attempt
// for one task run draws from the same counter, so a strategy that burned
// most of the budget leaves little for the ones after it. Exhaustion is
// fatal for the whole task, not just the current strategy.
type Budget struct {
	mu   sync.Mutex
	max  int
	used int
}

// NewBudget creates a budget allowing max interactions. A non-positive
// max means unlimited.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Spend consumes one interaction, failing once the allowance is gone.
func (b *Budget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used >= b.max {
		return errors.WithFields(
			errors.New(errors.BudgetExceeded, "interaction budget exhausted"),
			errors.Fields{"used": b.used, "max": b.max})
	}
	b.used++
	return nil
}

// Used returns the number of interactions consumed so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Remaining returns how many interactions are left, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max <= 0 {
		return -1
	}
	return b.max - b.used
}
