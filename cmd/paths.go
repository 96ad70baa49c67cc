package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show paths used by the application",
	Example: `  # Show all application paths
  aimarketing paths`,
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendRows([]table.Row{
			{"Config", config.ConfigDir},
			{"Prompts", config.PromptsDir},
			{"Data", config.DataDir},
			{"Cache", config.CacheDir},
			{"Temp", config.TempDir},
			{"Survey summary", config.ETLOutput},
		})
		t.Render()
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)
}
