// Package proc samples CPU and memory usage of processes from /proc.
package proc

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Linux reports utime/stime in clock ticks, 100 Hz on every mainstream kernel.
const clockTicks = 100.0

type Stats struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  int64   `json:"memory_rss"`
	State      string  `json:"state"`
	Threads    int     `json:"threads"`
}

type procStat struct {
	utime   uint64
	stime   uint64
	state   byte
	threads int
	rss     int64 // pages
}

type cpuSnapshot struct {
	ticks     uint64
	timestamp time.Time
}

// Sampler computes CPU percentages between successive Sample calls.
type Sampler struct {
	mu        sync.Mutex
	snapshots map[int]cpuSnapshot
}

func NewSampler() *Sampler {
	return &Sampler{snapshots: map[int]cpuSnapshot{}}
}

// Sample reads the current stats of pid. CPUPercent is 0 on the first sample
// of a pid.
func (s *Sampler) Sample(pid int) (*Stats, error) {
	if pid <= 0 {
		return nil, errors.New("invalid PID")
	}
	ps, err := readProcStat(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "read stat of pid %d", pid)
	}

	stats := &Stats{
		PID:       pid,
		MemoryRSS: ps.rss * int64(os.Getpagesize()),
		State:     string(ps.state),
		Threads:   ps.threads,
	}

	now := time.Now()
	ticks := ps.utime + ps.stime

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.snapshots[pid]; ok {
		elapsed := now.Sub(prev.timestamp).Seconds()
		if elapsed > 0 && ticks >= prev.ticks {
			stats.CPUPercent = float64(ticks-prev.ticks) / clockTicks / elapsed * 100.0
		}
	}
	s.snapshots[pid] = cpuSnapshot{ticks: ticks, timestamp: now}
	return stats, nil
}

// Forget drops the snapshot kept for pid.
func (s *Sampler) Forget(pid int) {
	s.mu.Lock()
	delete(s.snapshots, pid)
	s.mu.Unlock()
}

func readProcStat(pid int) (*procStat, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return nil, errors.Wrap(err, "read stat file")
	}
	return parseProcStat(string(data))
}

// parseProcStat parses the content of /proc/[pid]/stat:
//
//	pid (comm) state ppid pgrp session tty_nr tpgid flags minflt cminflt
//	majflt cmajflt utime stime cutime cstime priority nice num_threads
//	itrealvalue starttime vsize rss ...
//
// comm may contain spaces and parentheses, so parsing starts after the last ')'.
func parseProcStat(content string) (*procStat, error) {
	closeParen := strings.LastIndex(content, ")")
	if closeParen < 0 {
		return nil, errors.New("malformed stat file: no closing paren")
	}
	fields := strings.Fields(content[closeParen+1:])
	// fields[0] is state, so field N of the man page is fields[N-3].
	if len(fields) < 22 {
		return nil, errors.Errorf("malformed stat file: %d fields", len(fields))
	}

	ps := &procStat{}
	if len(fields[0]) > 0 {
		ps.state = fields[0][0]
	}

	var parseErr error
	if ps.utime, parseErr = strconv.ParseUint(fields[11], 10, 64); parseErr != nil {
		return nil, errors.Wrap(parseErr, "parse utime")
	}
	if ps.stime, parseErr = strconv.ParseUint(fields[12], 10, 64); parseErr != nil {
		return nil, errors.Wrap(parseErr, "parse stime")
	}
	if ps.threads, parseErr = strconv.Atoi(fields[17]); parseErr != nil {
		return nil, errors.Wrap(parseErr, "parse num_threads")
	}
	if ps.rss, parseErr = strconv.ParseInt(fields[21], 10, 64); parseErr != nil {
		return nil, errors.Wrap(parseErr, "parse rss")
	}
	return ps, nil
}
