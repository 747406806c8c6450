package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/cadence/cmd/cadence/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:          "cadence",
		Short:        "cadence prints labeled lines at fixed intervals from cooperative tasks",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.InitLoggerFromCobra(cmd)
		},
	}
	if err := logging.AddLoggingLayerToRootCommand(rootCmd, "cadence"); err != nil {
		return nil, err
	}
	cmds.AddRootFlags(rootCmd)
	if err := cmds.AddCommands(rootCmd); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd, err := newRootCmd()
	cobra.CheckErr(err)
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}
