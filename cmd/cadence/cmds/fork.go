package cmds

import (
	"os"
	"slices"
	"time"

	"github.com/go-go-golems/cadence/pkg/supervise"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newForkCmd() *cobra.Command {
	var o runOptions
	var processes int
	var statsInterval time.Duration
	var shutdownTimeout time.Duration
	var noColor bool

	cmd := &cobra.Command{
		Use:   "fork",
		Short: "Run the printers in independent child processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			rootOpts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("processes") && cfg.Processes > 0 {
				processes = cfg.Processes
			}
			if processes <= 0 {
				return errors.New("processes must be > 0")
			}

			exe, err := os.Executable()
			if err != nil {
				return errors.Wrap(err, "resolve executable")
			}

			ctx, cancel, err := o.withDeadline(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			sup := supervise.New(supervise.Options{
				Executable:      exe,
				Args:            childArgs(cmd, rootOpts.Config),
				Processes:       processes,
				ShutdownTimeout: shutdownTimeout,
				StatsInterval:   statsInterval,
				Stderr:          cmd.ErrOrStderr(),
				Color:           !noColor,
			})
			log.Info().Int("processes", processes).Str("executable", exe).Msg("forking")
			return sup.Run(ctx, cmd.OutOrStdout())
		},
	}

	addRunFlags(cmd, &o)
	cmd.Flags().IntVar(&processes, "processes", 2, "Number of independent processes")
	cmd.Flags().DurationVar(&statsInterval, "stats-interval", 0, "Log CPU and memory of each process at this interval (0 disables)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 3*time.Second, "Grace period before killing a process on shutdown")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Do not color the process prefix")
	return cmd
}

// childArgs builds the argv of a child: "run" plus every forwarded run flag
// and every root flag (the logging layer among them) the user set on fork.
func childArgs(cmd *cobra.Command, cfgPath string) []string {
	args := []string{"run", "--config", cfgPath}
	rootFlags := cmd.Root().PersistentFlags()
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if slices.Contains(forwardedRunFlags, f.Name) || rootFlags.Lookup(f.Name) != nil {
			args = append(args, "--"+f.Name+"="+f.Value.String())
		}
	})
	return args
}
