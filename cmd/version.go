package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vecinotech/vecinotech/internal/build"
)

// NewVersionCommand returns the command printing the build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vecinotech version",
		Long:  "Print the vecinotech version, build date and commit.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}
}

func version(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "vecinotech version %s date %s commit %s %s\n",
		build.Version, build.Date, build.Commit, runtime.Version())
	return err
}
