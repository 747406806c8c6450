package cmds

import (
	"github.com/go-go-golems/cadence/pkg/cadence"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fast and slow printers concurrently until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			ctx, cancel, err := o.withDeadline(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			d := &cadence.Driver{
				Out:      cmd.OutOrStdout(),
				Cadences: cfg.CadencesOrDefault(),
				Wait:     cadence.WaitMode(cfg.Wait),
				Rounds:   o.Rounds,
			}
			return d.Run(ctx)
		},
	}

	addRunFlags(cmd, &o)
	return cmd
}
