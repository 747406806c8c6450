package supervise

import (
	"context"
	"syscall"
	"time"

	"github.com/go-go-golems/cadence/pkg/state"
	"github.com/pkg/errors"
)

// terminatePIDGroup sends SIGTERM to the process group of pid and escalates
// to SIGKILL once timeout has passed.
func terminatePIDGroup(ctx context.Context, pid int, timeout time.Duration) error {
	if pid <= 0 {
		return nil
	}
	pgid, err := syscall.Getpgid(pid)
	signal := func(sig syscall.Signal) {
		if err == nil {
			_ = syscall.Kill(-pgid, sig)
		} else {
			_ = syscall.Kill(pid, sig)
		}
	}
	signal(syscall.SIGTERM)

	if ctxDeadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(ctxDeadline); remaining < timeout {
			timeout = remaining
		}
	}

	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()

	if waitGone(ctx, t, pid, time.Now().Add(timeout)) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	signal(syscall.SIGKILL)
	if waitGone(ctx, t, pid, time.Now().Add(2*time.Second)) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Errorf("pid %d still alive after SIGKILL", pid)
}

func waitGone(ctx context.Context, t *time.Ticker, pid int, deadline time.Time) bool {
	for {
		if !state.ProcessAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
}
