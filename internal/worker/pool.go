// Package worker limits how many rewrite jobs run at the same time.
package worker

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when every slot is taken.
var ErrBusy = errors.New("server is busy, please retry")

// Pool admits a job immediately or rejects it; callers never queue.
type Pool struct {
	sem     *semaphore.Weighted
	limit   int64
	running atomic.Int64
}

// NewPool returns a pool with limit slots. limit <= 0 means unlimited.
func NewPool(limit int) *Pool {
	p := &Pool{limit: int64(limit)}
	if limit > 0 {
		p.sem = semaphore.NewWeighted(int64(limit))
	}
	return p
}

// Run executes fn on the caller's goroutine if a slot is free.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if p != nil && p.sem != nil {
		if !p.sem.TryAcquire(1) {
			return ErrBusy
		}
		defer p.sem.Release(1)
	}
	if p != nil {
		p.running.Add(1)
		defer p.running.Add(-1)
	}
	return fn(ctx)
}

// Running reports the number of jobs currently executing.
func (p *Pool) Running() int64 {
	if p == nil {
		return 0
	}
	return p.running.Load()
}

// Limit is the configured slot count, 0 when unlimited.
func (p *Pool) Limit() int64 {
	if p == nil || p.limit < 0 {
		return 0
	}
	return p.limit
}
