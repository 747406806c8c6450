package cmds

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-go-golems/cadence/pkg/cadence"
	"github.com/go-go-golems/cadence/pkg/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Config string
}

func AddRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Path to config file (defaults to "+config.DefaultConfigFilename+" in the working directory)")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
		cfgPath = config.DefaultPath(cwd)
	}
	cfgPath, err = filepath.Abs(cfgPath)
	if err != nil {
		return rootOptions{}, err
	}
	return rootOptions{Config: cfgPath}, nil
}

// runOptions are the driver flags shared by run and fork.
type runOptions struct {
	Wait     string
	Rounds   int
	Duration time.Duration
	StopAt   string
}

// forwardedRunFlags are passed on to the children of fork.
var forwardedRunFlags = []string{"wait", "rounds"}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	cmd.Flags().StringVar(&o.Wait, "wait", "", "How printers wait between lines: sleep (cooperative) or spin (busy-wait; the first cadence never yields, so with --rounds 0 it is the only one that prints)")
	cmd.Flags().IntVar(&o.Rounds, "rounds", 0, "Rounds per cadence before stopping (0 runs until interrupted)")
	cmd.Flags().DurationVar(&o.Duration, "duration", 0, "Stop after this long (0 disables)")
	cmd.Flags().StringVar(&o.StopAt, "stop-at", "", "Stop at this local date/time, e.g. \"2026-10-17 15:04\"")
}

func (o runOptions) validate() error {
	if _, err := cadence.ParseWaitMode(o.Wait); err != nil {
		return err
	}
	if o.Rounds < 0 {
		return errors.New("rounds must be >= 0")
	}
	if o.Duration < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// withDeadline applies --duration and --stop-at to ctx.
func (o runOptions) withDeadline(ctx context.Context) (context.Context, context.CancelFunc, error) {
	var deadline time.Time
	if o.Duration > 0 {
		deadline = time.Now().Add(o.Duration)
	}
	if o.StopAt != "" {
		at, err := dateparse.ParseLocal(o.StopAt)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parse --stop-at %q", o.StopAt)
		}
		if deadline.IsZero() || at.Before(deadline) {
			deadline = at
		}
	}
	if deadline.IsZero() {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	return ctx, cancel, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, o runOptions) (*config.File, error) {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOptional(opts.Config)
	if err != nil {
		return nil, err
	}
	if o.Wait != "" {
		cfg.Wait = o.Wait
	}
	return cfg, nil
}
