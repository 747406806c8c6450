package coop

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunWaitsForAllTasks(t *testing.T) {
	l := New()
	done := map[string]bool{}

	err := l.Run(context.Background(),
		Task{Name: "a", Fn: func(ctx context.Context) error {
			if err := l.Sleep(ctx, 10*time.Millisecond); err != nil {
				return err
			}
			done["a"] = true
			return nil
		}},
		Task{Name: "b", Fn: func(ctx context.Context) error {
			done["b"] = true
			return nil
		}},
	)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"a": true, "b": true}, done)
	require.Equal(t, 0, l.Running())
}

func TestLoop_NoTasks(t *testing.T) {
	require.NoError(t, New().Run(context.Background()))
}

func TestLoop_TaskWithoutFunctionIsRejected(t *testing.T) {
	err := New().Run(context.Background(), Task{Name: "empty"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestLoop_OnlyOneTaskRunsBetweenSuspensionPoints(t *testing.T) {
	l := New()
	counter := 0
	var violations int

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Name: "inc", Fn: func(ctx context.Context) error {
			for j := 0; j < 50; j++ {
				if l.Running() != 1 {
					violations++
				}
				v := counter
				runtime.Gosched()
				counter = v + 1
				if err := l.Sleep(ctx, 0); err != nil {
					return err
				}
			}
			return nil
		}}
	}

	require.NoError(t, l.Run(context.Background(), tasks...))
	require.Equal(t, 8*50, counter)
	require.Zero(t, violations)
	require.GreaterOrEqual(t, l.Switches(), int64(8*50))
}

func TestLoop_SleepLetsOtherTasksRun(t *testing.T) {
	l := New()
	var events []string

	err := l.Run(context.Background(),
		Task{Name: "a", Fn: func(ctx context.Context) error {
			events = append(events, "a-start")
			if err := l.Sleep(ctx, 200*time.Millisecond); err != nil {
				return err
			}
			events = append(events, "a-end")
			return nil
		}},
		Task{Name: "b", Fn: func(ctx context.Context) error {
			if err := l.Sleep(ctx, 20*time.Millisecond); err != nil {
				return err
			}
			events = append(events, "b")
			return nil
		}},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"a-start", "b", "a-end"}, events)
}

func TestLoop_SpinBlocksOtherTasks(t *testing.T) {
	l := New()
	var events []string

	err := l.Run(context.Background(),
		Task{Name: "a", Fn: func(ctx context.Context) error {
			events = append(events, "a-start")
			if err := l.Spin(ctx, 100*time.Millisecond); err != nil {
				return err
			}
			events = append(events, "a-end")
			return nil
		}},
		Task{Name: "b", Fn: func(ctx context.Context) error {
			events = append(events, "b")
			return nil
		}},
	)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		if e == "a-start" {
			require.Less(t, i+1, len(events))
			require.Equal(t, "a-end", events[i+1])
		}
	}
}

func TestLoop_CancelStopsSleepingTasks(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	forever := func(ctx context.Context) error {
		for {
			if err := l.Sleep(ctx, time.Hour); err != nil {
				return err
			}
		}
	}

	start := time.Now()
	err := l.Run(ctx, Task{Name: "a", Fn: forever}, Task{Name: "b", Fn: forever})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, 0, l.Running())
}

func TestLoop_TaskErrorStopsTheOthers(t *testing.T) {
	l := New()
	var mu sync.Mutex
	stopped := false

	err := l.Run(context.Background(),
		Task{Name: "failing", Fn: func(ctx context.Context) error {
			if err := l.Sleep(ctx, 20*time.Millisecond); err != nil {
				return err
			}
			return errors.New("boom")
		}},
		Task{Name: "sleeper", Fn: func(ctx context.Context) error {
			err := l.Sleep(ctx, time.Hour)
			mu.Lock()
			stopped = true
			mu.Unlock()
			return err
		}},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.Contains(t, err.Error(), "failing")
	mu.Lock()
	defer mu.Unlock()
	require.True(t, stopped)
}

func TestLoop_TasksStartInSubmissionOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		l := New()
		var started []string
		task := func(name string) Task {
			return Task{Name: name, Fn: func(ctx context.Context) error {
				started = append(started, name)
				return l.Sleep(ctx, 0)
			}}
		}
		require.NoError(t, l.Run(context.Background(), task("fast"), task("slow"), task("third")))
		require.Equal(t, []string{"fast", "slow", "third"}, started)
	}
}
