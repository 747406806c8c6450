package state

import (
	stderrors "errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ExitInfo describes how one child process ended.
type ExitInfo struct {
	Process   int       `json:"process"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	ExitedAt  time.Time `json:"exited_at"`

	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewExitInfo fills exit code and signal from the result of cmd.Wait.
func NewExitInfo(process, pid int, startedAt time.Time, waitErr error) ExitInfo {
	info := ExitInfo{
		Process:   process,
		PID:       pid,
		StartedAt: startedAt,
		ExitedAt:  time.Now(),
	}
	if waitErr == nil {
		code := 0
		info.ExitCode = &code
		return info
	}

	info.Error = waitErr.Error()
	var ee *exec.ExitError
	if stderrors.As(waitErr, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				info.Signal = ws.Signal().String()
			}
			if ws.Exited() {
				code := ws.ExitStatus()
				info.ExitCode = &code
			}
		}
	}
	return info
}

// Clean reports whether the process exited with status 0.
func (e ExitInfo) Clean() bool {
	return e.ExitCode != nil && *e.ExitCode == 0 && e.Signal == ""
}

func (e ExitInfo) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int("process", e.Process).
		Int("pid", e.PID).
		Dur("uptime", e.ExitedAt.Sub(e.StartedAt))
	if e.ExitCode != nil {
		ev.Int("exit_code", *e.ExitCode)
	}
	if e.Signal != "" {
		ev.Str("signal", e.Signal)
	}
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}
