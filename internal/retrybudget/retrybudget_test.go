package retrybudget_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synthforge/synthgen/internal/retrybudget"
)

func TestCellSucceedsOnFirstAttempt(t *testing.T) {
	b := retrybudget.Budget{MaxCell: 3}
	calls := 0
	err := b.Cell(context.Background(), func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestCellRetriesUntilSuccess(t *testing.T) {
	b := retrybudget.Budget{MaxCell: 5}
	calls := 0
	err := b.Cell(context.Background(), func(attempt int) error {
		calls++
		if attempt < 3 {
			return retrybudget.Retryable(errors.New("collision"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestCellReturnsExhaustedAfterBudget(t *testing.T) {
	b := retrybudget.Budget{MaxCell: 3}
	calls := 0
	err := b.Cell(context.Background(), func(attempt int) error {
		calls++
		return retrybudget.Retryable(errors.New("collision"))
	})
	require.Error(t, err)
	var exhausted *retrybudget.Exhausted
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, calls)
}

func TestNonRetryableErrorStopsImmediately(t *testing.T) {
	b := retrybudget.Budget{MaxTable: 5}
	calls := 0
	sentinel := errors.New("fatal")
	err := b.Table(context.Background(), func(attempt int) error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestZeroBudgetStillAttemptsOnce(t *testing.T) {
	b := retrybudget.Budget{MaxCell: 0}
	calls := 0
	err := b.Cell(context.Background(), func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}
