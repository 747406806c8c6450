package printer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-go-golems/cadence/pkg/coop"
	"github.com/pkg/errors"
)

// Waiter is the suspension strategy used between two printed lines.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

type WaiterFunc func(ctx context.Context, d time.Duration) error

func (f WaiterFunc) Wait(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// Sleeper suspends the calling task on loop, letting other tasks run.
func Sleeper(loop *coop.Loop) Waiter {
	return WaiterFunc(loop.Sleep)
}

// Spinner busy-waits while keeping the loop.
func Spinner(loop *coop.Loop) Waiter {
	return WaiterFunc(loop.Spin)
}

func Format(label string, i int) string {
	return fmt.Sprintf("Function: %s, Output: %d\n", label, i)
}

// Work writes n indexed lines for label to out, waiting delay after each one.
func Work(ctx context.Context, w Waiter, out io.Writer, n int, delay time.Duration, label string) error {
	for i := 0; i < n; i++ {
		if _, err := io.WriteString(out, Format(label, i)); err != nil {
			return errors.Wrapf(err, "write %s line %d", label, i)
		}
		if err := w.Wait(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}
