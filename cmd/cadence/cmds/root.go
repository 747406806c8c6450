package cmds

import (
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newWorkCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newForkCmd())
	return nil
}
