package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_DeliversLinesInOrder(t *testing.T) {
	b, err := NewInMemoryBus()
	require.NoError(t, err)

	var mu sync.Mutex
	var got []Line
	b.HandleLines("test", func(l Line) error {
		mu.Lock()
		got = append(got, l)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case <-b.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}

	var want []Line
	for i := 0; i < 50; i++ {
		l := Line{Process: 1, PID: 99, Text: string(rune('a' + i%26))}
		want = append(want, l)
		require.NoError(t, b.PublishLine(l))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(want)
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, want, got)
	mu.Unlock()

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, b.Close())
}
