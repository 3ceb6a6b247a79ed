// Package scheduler drives the recurring session sweeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rephrasego/internal/service/session"
)

const (
	DefaultExpiredInterval = 5 * time.Minute
	DefaultStaleInterval   = 30 * time.Minute
	tickTimeout            = time.Minute
)

// Sweeper is the part of the session store the scheduler drives.
type Sweeper interface {
	SweepExpired(ctx context.Context) (session.SweepResult, error)
	SweepStale(ctx context.Context) (session.SweepResult, error)
}

type Config struct {
	ExpiredInterval time.Duration
	StaleInterval   time.Duration
}

// Scheduler runs SweepExpired and SweepStale on independent constant-delay
// schedules. A failing or panicking tick is logged and the next one still runs.
type Scheduler struct {
	sweeper Sweeper
	cfg     Config
	cron    *cron.Cron

	startOnce sync.Once
	stopOnce  sync.Once
}

func New(sweeper Sweeper, cfg Config) *Scheduler {
	if cfg.ExpiredInterval <= 0 {
		cfg.ExpiredInterval = DefaultExpiredInterval
	}
	if cfg.StaleInterval <= 0 {
		cfg.StaleInterval = DefaultStaleInterval
	}
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		sweeper: sweeper,
		cfg:     cfg,
		// Recover must sit inside SkipIfStillRunning, which only hands its
		// token back when the wrapped job returns normally.
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		)),
	}
}

// Start runs one pass of both sweeps, then schedules them. Cancelling ctx
// stops the scheduler the same way Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.RunOnce(ctx)
		s.cron.Schedule(cron.Every(s.cfg.ExpiredInterval), cron.FuncJob(func() {
			s.tick(ctx, "expired", s.sweeper.SweepExpired)
		}))
		s.cron.Schedule(cron.Every(s.cfg.StaleInterval), cron.FuncJob(func() {
			s.tick(ctx, "stale", s.sweeper.SweepStale)
		}))
		s.cron.Start()
		log.Printf("scheduler started: expired every %s, stale every %s", s.cfg.ExpiredInterval, s.cfg.StaleInterval)
		go func() {
			<-ctx.Done()
			s.Stop()
		}()
	})
}

// Stop halts the schedules and waits for a running sweep to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		log.Printf("scheduler stopped")
	})
}

// RunOnce runs both sweeps a single time. Failures are logged and joined
// into the returned error; the second sweep runs even if the first fails.
func (s *Scheduler) RunOnce(ctx context.Context) (expired, stale session.SweepResult, err error) {
	expired, expErr := s.tick(ctx, "expired", s.sweeper.SweepExpired)
	stale, staleErr := s.tick(ctx, "stale", s.sweeper.SweepStale)
	return expired, stale, errors.Join(expErr, staleErr)
}

func (s *Scheduler) tick(parent context.Context, name string, sweep func(context.Context) (session.SweepResult, error)) (res session.SweepResult, err error) {
	if parent.Err() != nil {
		return session.SweepResult{}, parent.Err()
	}
	ctx, cancel := context.WithTimeout(parent, tickTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("cleanup %s sweep panicked: %v\n%s", name, r, debug.Stack())
			res, err = session.SweepResult{}, fmt.Errorf("%s sweep panicked: %v", name, r)
		}
	}()
	res, err = sweep(ctx)
	if err != nil {
		log.Printf("cleanup %s sweep failed: %v", name, err)
		return res, fmt.Errorf("%s sweep: %w", name, err)
	}
	if res.Sessions > 0 || res.Files > 0 {
		log.Printf("cleanup %s sweep: removed %d sessions, %d files", name, res.Sessions, res.Files)
	}
	return res, nil
}
