package client

import (
	"context"
	"time"
)

// RetryBudget is the transport retry allowance of one query.
//
// The budget spans all pages of the query and is consumed only by transport
// failures. Congestion responses never touch it.
type RetryBudget struct {
	total int
	used  int
}

// NewRetryBudget creates a budget allowing n retries (n <= 0 allows none).
func NewRetryBudget(n int) *RetryBudget {
	if n < 0 {
		n = 0
	}
	return &RetryBudget{total: n}
}

// Consume takes one retry. It returns false, without consuming, when the
// budget is exhausted.
func (b *RetryBudget) Consume() bool {
	if b == nil || b.used >= b.total {
		return false
	}
	b.used++
	return true
}

// Remaining returns the retries left.
func (b *RetryBudget) Remaining() int {
	if b == nil {
		return 0
	}
	return b.total - b.used
}

// Used returns the retries consumed so far.
func (b *RetryBudget) Used() int {
	if b == nil {
		return 0
	}
	return b.used
}

// Total returns the size of the budget.
func (b *RetryBudget) Total() int {
	if b == nil {
		return 0
	}
	return b.total
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
