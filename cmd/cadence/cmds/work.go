package cmds

import (
	"context"

	"github.com/go-go-golems/cadence/pkg/cadence"
	"github.com/go-go-golems/cadence/pkg/coop"
	"github.com/go-go-golems/cadence/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newWorkCmd() *cobra.Command {
	var c cadence.Cadence
	var wait string

	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run a single interval printer and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.Validate(); err != nil {
				return err
			}
			mode, err := cadence.ParseWaitMode(wait)
			if err != nil {
				return err
			}

			loop := coop.New()
			w := printer.Sleeper(loop)
			if mode == cadence.WaitSpin {
				w = printer.Spinner(loop)
			}
			err = loop.Run(cmd.Context(), coop.Task{
				Name: c.Label,
				Fn: func(ctx context.Context) error {
					return printer.Work(ctx, w, cmd.OutOrStdout(), c.Count, c.Delay(), c.Label)
				},
			})
			return errors.Wrap(err, "work")
		},
	}

	cmd.Flags().IntVar(&c.Count, "count", 100, "Number of lines to print")
	cmd.Flags().Float64Var(&c.DelayMS, "delay-ms", 50, "Delay after each line in milliseconds")
	cmd.Flags().StringVar(&c.Label, "label", "work", "Label printed on each line")
	cmd.Flags().StringVar(&wait, "wait", "", "sleep (cooperative) or spin (busy-wait, holds the scheduler)")
	return cmd
}
