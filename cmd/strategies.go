package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/procguard/pkg/procguard"
)

// StrategiesCmd lists every termination strategy.
var StrategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List termination strategies",
	Long: `Prints every strategy kind with its description. Timed kinds take a ` +
		`duration suffix, for example wait-timeout-kill:10s.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return printStrategies(cmd.OutOrStdout(), asJSON)
	},
}

func init() {
	StrategiesCmd.Flags().Bool("json", false, "Print as JSON")
}

type strategyEntry struct {
	Name        string `json:"name"`
	Timed       bool   `json:"timed"`
	Example     string `json:"example"`
	Description string `json:"description"`
}

func strategyEntries() []strategyEntry {
	infos := procguard.Strategies()
	entries := make([]strategyEntry, 0, len(infos))
	for _, info := range infos {
		example := info.Name
		if info.Timed {
			example += ":5s"
		}
		entries = append(entries, strategyEntry{
			Name:        info.Name,
			Timed:       info.Timed,
			Example:     example,
			Description: info.Description,
		})
	}
	return entries
}

func printStrategies(w io.Writer, asJSON bool) error {
	entries := strategyEntries()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tEXAMPLE\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Example, e.Description)
	}
	return tw.Flush()
}
