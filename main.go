package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/procguard/cmd"
	"github.com/smazurov/procguard/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "procguard",
		Short: "Run a child process and guarantee how it is torn down",
		Long: `procguard starts a command and, when it has to stop, disposes of it with ` +
			`the configured termination strategy.`,
		Version:      version.String(),
		SilenceUsage: true,
	}

	root.AddCommand(cmd.CreateRunCmd())
	root.AddCommand(cmd.StrategiesCmd)
	root.AddCommand(cmd.VersionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
