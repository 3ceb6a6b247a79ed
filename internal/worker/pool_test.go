package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRejectsWhenFull(t *testing.T) {
	pool := NewPool(1)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- pool.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := pool.Run(context.Background(), func(context.Context) error {
		t.Fatal("second job must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.EqualValues(t, 1, pool.Running())

	close(release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 0, pool.Running())

	// slot is free again
	ran := false
	require.NoError(t, pool.Run(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestPoolPropagatesJobError(t *testing.T) {
	boom := errors.New("boom")
	err := NewPool(2).Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPoolUnlimited(t *testing.T) {
	pool := NewPool(0)
	assert.EqualValues(t, 0, pool.Limit())

	const jobs = 16
	var wg sync.WaitGroup
	gate := make(chan struct{})
	errs := make(chan error, jobs)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- pool.Run(context.Background(), func(context.Context) error {
				<-gate
				return nil
			})
		}()
	}
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
