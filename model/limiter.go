package model

import (
	"context"
	"fmt"
	"sync"
)

// CallLimiter enforces a maximum number of allowed model calls per run.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Increment increases the call counter and returns an error if the limit is exceeded.
func (cl *CallLimiter) Increment() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.count++
	if cl.max > 0 && cl.count > cl.max {
		return fmt.Errorf("exceeded max model calls: %d", cl.max)
	}

	return nil
}

// Count returns the current number of calls made.
func (cl *CallLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return cl.count
}

// Remaining returns how many calls are left before hitting the limit.
func (cl *CallLimiter) Remaining() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.max == 0 {
		return -1 // unlimited
	}

	return cl.max - cl.count
}

// limitedModel charges a CallLimiter before delegating generation.
type limitedModel struct {
	inner   Model
	limiter *CallLimiter
}

// Limited wraps a model so every Generate call consumes the limiter first.
// Once the limit is exceeded further calls fail without reaching the
// provider.
func Limited(m Model, limiter *CallLimiter) Model {
	return &limitedModel{inner: m, limiter: limiter}
}

// Generate implements Model.
func (lm *limitedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := lm.limiter.Increment(); err != nil {
		return nil, err
	}
	return lm.inner.Generate(ctx, req)
}

// Info implements Model.
func (lm *limitedModel) Info() Info { return lm.inner.Info() }
