package supervise

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/go-go-golems/cadence/pkg/bus"
	"github.com/go-go-golems/cadence/pkg/proc"
	"github.com/go-go-golems/cadence/pkg/state"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EnvProcess carries the 1-based index of a child process.
const EnvProcess = "CADENCE_PROCESS"

type Options struct {
	Executable      string
	Args            []string
	Processes       int
	ShutdownTimeout time.Duration
	StatsInterval   time.Duration
	// Stderr receives the children's stderr. Defaults to os.Stderr.
	Stderr io.Writer
	// Color styles the process prefix of each forwarded line.
	Color bool
}

type Supervisor struct {
	opts Options
}

func New(opts Options) *Supervisor {
	if opts.Processes <= 0 {
		opts.Processes = 2
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 3 * time.Second
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Supervisor{opts: opts}
}

// Run starts the child processes, forwards their stdout to out tagged with
// the process identity, and returns once every child has exited. Canceling
// ctx terminates the children.
func (s *Supervisor) Run(ctx context.Context, out io.Writer) error {
	if s.opts.Executable == "" {
		return errors.New("missing executable")
	}

	b, err := bus.NewInMemoryBus()
	if err != nil {
		return err
	}
	b.HandleLines("cadence-sink", newSink(out, s.opts.Color).write)

	busCtx, busCancel := context.WithCancel(context.Background())
	busDone := make(chan error, 1)
	go func() { busDone <- b.Run(busCtx) }()
	defer func() {
		busCancel()
		<-busDone
		_ = b.Close()
	}()

	select {
	case <-b.Running():
	case err := <-busDone:
		busDone <- err
		if err == nil {
			err = errors.New("router exited")
		}
		return errors.Wrap(err, "line bus stopped before start")
	case <-ctx.Done():
		return nil
	}

	sampler := proc.NewSampler()
	pids := make(chan int, s.opts.Processes)

	var eg errgroup.Group
	for i := 1; i <= s.opts.Processes; i++ {
		eg.Go(func() error {
			return s.runChild(ctx, b, i, sampler, pids)
		})
	}

	statsCtx, statsCancel := context.WithCancel(ctx)
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		s.logStats(statsCtx, sampler, pids)
	}()

	err = eg.Wait()
	statsCancel()
	<-statsDone
	return err
}

func (s *Supervisor) runChild(ctx context.Context, b *bus.Bus, process int, sampler *proc.Sampler, pids chan<- int) error {
	// #nosec G204 -- executable is our own binary or set by the caller.
	cmd := exec.Command(s.opts.Executable, s.opts.Args...)
	cmd.Env = append(os.Environ(), EnvProcess+"="+strconv.Itoa(process))
	cmd.Stderr = s.opts.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "start process %d", process)
	}

	pid := cmd.Process.Pid
	startedAt := time.Now()
	log.Info().Int("process", process).Int("pid", pid).Msg("process started")
	pids <- pid

	exited := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-exited:
		case <-ctx.Done():
			if err := terminatePIDGroup(context.Background(), pid, s.opts.ShutdownTimeout); err != nil {
				log.Warn().Err(err).Int("process", process).Int("pid", pid).Msg("failed to stop process")
			}
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := b.PublishLine(bus.Line{Process: process, PID: pid, Text: scanner.Text()}); err != nil {
			log.Warn().Err(err).Int("process", process).Msg("dropped line")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Int("process", process).Msg("stdout read failed")
		// Drain so the child does not block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	close(exited)
	<-stopped
	sampler.Forget(pid)

	info := state.NewExitInfo(process, pid, startedAt, waitErr)
	log.Info().EmbedObject(info).Msg("process exited")
	if ctx.Err() != nil || info.Clean() {
		return nil
	}
	if info.Signal != "" {
		return errors.Errorf("process %d (pid %d) killed by %s", process, pid, info.Signal)
	}
	return errors.Errorf("process %d (pid %d) exited: %s", process, pid, info.Error)
}

func (s *Supervisor) logStats(ctx context.Context, sampler *proc.Sampler, pids <-chan int) {
	if s.opts.StatsInterval <= 0 {
		return
	}
	t := time.NewTicker(s.opts.StatsInterval)
	defer t.Stop()

	var known []int
	for {
		select {
		case <-ctx.Done():
			return
		case pid := <-pids:
			known = append(known, pid)
		case <-t.C:
			for _, pid := range known {
				if !state.ProcessAlive(pid) {
					continue
				}
				st, err := sampler.Sample(pid)
				if err != nil {
					continue
				}
				log.Info().
					Int("pid", st.PID).
					Str("cpu", fmt.Sprintf("%.1f%%", st.CPUPercent)).
					Int64("rss", st.MemoryRSS).
					Int("threads", st.Threads).
					Str("state", st.State).
					Msg("process stats")
			}
		}
	}
}
