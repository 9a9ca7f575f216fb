package main

import (
	"os"

	"github.com/vecinotech/vecinotech/cmd"
	"github.com/vecinotech/vecinotech/cmd/migrate"
	"github.com/vecinotech/vecinotech/cmd/run"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	runCmd := run.NewRunCommand()
	rootCmd.AddCommand(runCmd)

	migrateCmd := migrate.NewMigrateCommand()
	rootCmd.AddCommand(migrateCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
