// Package cadence runs interval printers on a cooperative loop.
package cadence

import (
	"context"
	"io"
	"time"

	"github.com/go-go-golems/cadence/pkg/coop"
	"github.com/go-go-golems/cadence/pkg/printer"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type WaitMode string

const (
	WaitSleep WaitMode = "sleep"
	WaitSpin  WaitMode = "spin"
)

func ParseWaitMode(s string) (WaitMode, error) {
	switch WaitMode(s) {
	case "", WaitSleep:
		return WaitSleep, nil
	case WaitSpin:
		return WaitSpin, nil
	default:
		return "", errors.Errorf("unknown wait mode %q (want sleep or spin)", s)
	}
}

// Cadence is one printer configuration: Count lines per round, DelayMS
// milliseconds apart.
type Cadence struct {
	Label   string  `yaml:"label"`
	Count   int     `yaml:"count"`
	DelayMS float64 `yaml:"delay_ms"`
}

var (
	Fast = Cadence{Label: "fast_function", Count: 100, DelayMS: 50}
	Slow = Cadence{Label: "slow_function", Count: 100, DelayMS: 500}
)

func Defaults() []Cadence {
	return []Cadence{Fast, Slow}
}

func (c Cadence) Delay() time.Duration {
	return time.Duration(c.DelayMS * float64(time.Millisecond))
}

func (c Cadence) Validate() error {
	if c.Label == "" {
		return errors.New("cadence label is required")
	}
	if c.Count <= 0 {
		return errors.Errorf("cadence %q: count must be > 0", c.Label)
	}
	if c.DelayMS < 0 {
		return errors.Errorf("cadence %q: delay_ms must be >= 0", c.Label)
	}
	return nil
}

// Forever runs the printer for c round after round. rounds == 0 means no
// limit; the loop then only ends with ctx.
func Forever(ctx context.Context, w printer.Waiter, out io.Writer, c Cadence, rounds int) error {
	for round := 0; rounds == 0 || round < rounds; round++ {
		if err := printer.Work(ctx, w, out, c.Count, c.Delay(), c.Label); err != nil {
			return err
		}
		log.Trace().Str("cadence", c.Label).Int("round", round).Msg("round complete")
	}
	return nil
}

type Driver struct {
	Out      io.Writer
	Cadences []Cadence
	Wait     WaitMode
	// Rounds limits each cadence; 0 runs until the context ends.
	Rounds int
	// Loop is created on Run when nil.
	Loop *coop.Loop
}

// Run schedules one task per cadence on a single loop and waits for all of
// them. A canceled ctx is a normal shutdown and returns nil.
func (d *Driver) Run(ctx context.Context) error {
	if d.Out == nil {
		return errors.New("driver has no output")
	}
	cadences := d.Cadences
	if len(cadences) == 0 {
		cadences = Defaults()
	}
	for _, c := range cadences {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	mode, err := ParseWaitMode(string(d.Wait))
	if err != nil {
		return err
	}

	loop := d.Loop
	if loop == nil {
		loop = coop.New()
	}
	var w printer.Waiter
	switch mode {
	case WaitSpin:
		w = printer.Spinner(loop)
	default:
		w = printer.Sleeper(loop)
	}

	tasks := make([]coop.Task, 0, len(cadences))
	for _, c := range cadences {
		tasks = append(tasks, coop.Task{
			Name: c.Label,
			Fn: func(ctx context.Context) error {
				return Forever(ctx, w, d.Out, c, d.Rounds)
			},
		})
	}

	log.Info().Int("cadences", len(cadences)).Str("wait", string(mode)).Int("rounds", d.Rounds).Msg("driver started")
	if err := loop.Run(ctx, tasks...); err != nil {
		return errors.Wrap(err, "run cadences")
	}
	log.Info().Int64("switches", loop.Switches()).Msg("driver stopped")
	return nil
}
