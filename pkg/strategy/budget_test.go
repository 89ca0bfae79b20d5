package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rote-dev/rote-go/pkg/errors"
)

func TestBudgetSpend(t *testing.T) {
	b := NewBudget(3)
	assert.Equal(t, 0, b.Used())
	assert.Equal(t, 3, b.Remaining())

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Spend())
	}
	assert.Equal(t, 3, b.Used())
	assert.Equal(t, 0, b.Remaining())

	err := b.Spend()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.BudgetExceeded))
	assert.Equal(t, 3, b.Used(), "a rejected spend does not count")
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Spend())
	}
	assert.Equal(t, 100, b.Used())
	assert.Equal(t, -1, b.Remaining())
}

func TestBudgetConcurrentSpend(t *testing.T) {
	b := NewBudget(50)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				_ = b.Spend()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 50, b.Used(), "exactly the allowance is spent under contention")
}
