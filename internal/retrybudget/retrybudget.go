// Package retrybudget enforces the three bounded retry budgets spec §4.H
// names — per-cell, per-row, per-table — on top of
// github.com/sethvargo/go-retry instead of a hand-rolled attempt-counting
// loop. Generation retries are CPU-bound RNG re-rolls, not I/O, so every
// backoff here is a zero-delay constant; only the attempt ceiling matters.
package retrybudget

import (
	"context"

	"github.com/sethvargo/go-retry"
)

// Budget holds the three attempt ceilings an engine run is configured with
// (spec §6's max_attempts_cell/max_attempts_row/max_attempts_table).
type Budget struct {
	MaxCell  int
	MaxRow   int
	MaxTable int
}

// Exhausted reports that a regeneration loop ran out of attempts. Callers
// map this to the Resolver's UniqueExhausted/FkUnavailable/CheckViolation
// (or CycleError, for derive cycles) per what they were retrying.
type Exhausted struct {
	Attempts int
	Cause    error
}

func (e *Exhausted) Error() string { return e.Cause.Error() }
func (e *Exhausted) Unwrap() error { return e.Cause }

// Retryable marks err as a reason to regenerate rather than give up
// immediately — a thin alias over retry.RetryableError so callers never
// need to import go-retry directly.
func Retryable(err error) error { return retry.RetryableError(err) }

// Cell runs fn up to MaxCell times: one regeneration attempt per call,
// stopping at the first success or the first non-Retryable error.
func (b Budget) Cell(ctx context.Context, fn func(attempt int) error) error {
	return run(ctx, b.MaxCell, fn)
}

// Row runs fn up to MaxRow times, regenerating the whole candidate row.
func (b Budget) Row(ctx context.Context, fn func(attempt int) error) error {
	return run(ctx, b.MaxRow, fn)
}

// Table runs fn up to MaxTable times — the outermost budget, covering a
// table-level abort policy rather than any single row.
func (b Budget) Table(ctx context.Context, fn func(attempt int) error) error {
	return run(ctx, b.MaxTable, fn)
}

func run(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff, err := retry.NewConstant(0)
	if err != nil {
		return err
	}
	backoff = retry.WithMaxRetries(uint64(maxAttempts-1), backoff)

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		return fn(attempt)
	})
	if err != nil {
		return &Exhausted{Attempts: attempt, Cause: err}
	}
	return nil
}
