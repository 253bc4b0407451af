package retry

import (
	"context"
	"time"

	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// Executor runs an operation, retrying transient failures per its strategy.
//
// Safe for concurrent use. WithOnRetry returns a copy and leaves the
// receiver unchanged.
type Executor struct {
	classifier pgcopy.ErrorClassifier
	strategy   pgcopy.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor panics if classifier or strategy is nil.
func NewExecutor(classifier pgcopy.ErrorClassifier, strategy pgcopy.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{classifier: classifier, strategy: strategy}
}

// WithOnRetry returns a copy of e that calls callback before each wait.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// WithLogger returns a copy of e that reports each retry at verbose level.
func (e *Executor) WithLogger(logger pgcopy.Logger) *Executor {
	return e.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Verbose("Connection attempt failed (%v), retry %d in %v", err, attempt+1, delay.Round(time.Millisecond))
	})
}

// Execute calls operation once, then again after each backoff delay while the
// error is transient and attempts remain. It returns the last error, or the
// context error if ctx ends while waiting.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	err := operation(ctx)
	maxAttempts := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err); attempt++ {
		if maxAttempts >= 0 && attempt >= maxAttempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := e.strategy.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = operation(ctx)
	}

	return err
}
