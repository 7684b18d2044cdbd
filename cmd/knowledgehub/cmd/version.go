package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/pkg/version"
)

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				cmd.Println(version.Short())
				return
			}
			cmd.Println(version.String())
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}
