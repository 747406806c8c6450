// Package coop runs tasks on a single-threaded cooperative scheduler.
//
// Tasks are posted to a cooprative.Scheduler in the order they are given and
// hold the execution right until they reach a suspension point (Sleep), so
// everything between two suspension points runs without interleaving with the
// other tasks of the same Loop.
package coop

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sniperHW/cooprative"
)

type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Loop owns one scheduler per Run. A Loop runs one Run at a time.
type Loop struct {
	sched *cooprative.Scheduler

	running  atomic.Int32
	switches atomic.Int64
}

func New() *Loop {
	return &Loop{}
}

// Run posts every task in order and waits until all of them return. The
// first task to be posted is the first to run. Tasks that end because ctx
// was canceled are not treated as failures; the first other error cancels
// the remaining tasks and is returned.
func (l *Loop) Run(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if t.Fn == nil {
			return errors.Errorf("task %q has no function", t.Name)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := cooprative.NewScheduler()
	l.sched = s

	// Only touched from task bodies, which the scheduler runs one at a time.
	remaining := len(tasks)
	var firstErr error

	for _, t := range tasks {
		s.PostFunc(func() {
			l.enter()
			err := l.runTask(runCtx, t)
			if err != nil && !(isCancel(err) && ctx.Err() != nil) && firstErr == nil {
				firstErr = err
				cancel()
			}
			l.leave()

			remaining--
			if remaining == 0 {
				s.Close()
			}
		})
	}

	s.Start()
	return firstErr
}

func (l *Loop) runTask(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug().Str("task", t.Name).Msg("task started")
	err := t.Fn(ctx)
	if err != nil && !isCancel(err) {
		return errors.Wrapf(err, "task %q", t.Name)
	}
	log.Debug().Str("task", t.Name).Err(err).Msg("task finished")
	return err
}

// Sleep suspends the calling task for d. The execution right is released for
// the whole wait, so other tasks may run. A non-positive d still yields once.
// Sleep must only be called from a task running on l.
func (l *Loop) Sleep(ctx context.Context, d time.Duration) error {
	var waitErr error
	l.leave()
	l.sched.Await(func() {
		waitErr = wait(ctx, d)
	})
	l.enter()
	return waitErr
}

// Spin busy-waits for d without releasing the execution right. Every other
// task on l is blocked until Spin returns.
func (l *Loop) Spin(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Running reports how many tasks currently hold the execution right. It is 0 or 1.
func (l *Loop) Running() int {
	return int(l.running.Load())
}

// Switches counts how many times a task took the execution right.
func (l *Loop) Switches() int64 {
	return l.switches.Load()
}

func (l *Loop) enter() {
	l.running.Add(1)
	l.switches.Add(1)
}

func (l *Loop) leave() {
	l.running.Add(-1)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isCancel(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
