package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/smazurov/procguard/internal/version"
)

// VersionCmd prints build metadata as JSON.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(version.Get())
	},
}
