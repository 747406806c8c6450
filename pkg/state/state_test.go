package state

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessAlive(t *testing.T) {
	require.True(t, ProcessAlive(os.Getpid()))
	require.False(t, ProcessAlive(0))
	require.False(t, ProcessAlive(-1))
}

func TestProcessAlive_ZombieIsDead(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	deadline := time.Now().Add(3 * time.Second)
	for ProcessAlive(pid) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.False(t, ProcessAlive(pid))
	require.NoError(t, cmd.Wait())
}

func TestNewExitInfo(t *testing.T) {
	started := time.Now()

	info := NewExitInfo(1, 100, started, nil)
	require.True(t, info.Clean())
	require.Equal(t, 0, *info.ExitCode)

	err := exec.Command("sh", "-c", "exit 3").Run()
	info = NewExitInfo(2, 200, started, err)
	require.False(t, info.Clean())
	require.NotNil(t, info.ExitCode)
	require.Equal(t, 3, *info.ExitCode)
	require.Empty(t, info.Signal)
	require.NotEmpty(t, info.Error)

	err = exec.Command("sh", "-c", "kill -TERM $$").Run()
	info = NewExitInfo(3, 300, started, err)
	require.False(t, info.Clean())
	require.Equal(t, "terminated", info.Signal)
	require.Nil(t, info.ExitCode)
}
