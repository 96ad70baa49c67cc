package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata [YouTube URL or ID]",
	Short: "Show metadata and caption availability of a YouTube video",
	Example: `  # Show metadata of a YouTube video
  aimarketing metadata "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  aimarketing metadata tAP1eZYEuKA

  # Print JSON instead of a table
  aimarketing metadata tAP1eZYEuKA --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		youtubeURL, _, err := internal.ParseArg(args[0])
		if err != nil {
			return cliError(err)
		}

		app := internal.NewApp(config)
		defer app.Close()

		metadata, err := app.Metadata(cmd.Context(), youtubeURL)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(metadata, "", "  ")
			if err != nil {
				return fmt.Errorf("error converting metadata to JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendRows([]table.Row{
			{"ID", metadata.ID},
			{"Title", metadata.Title},
			{"Channel", metadata.Channel},
			{"Duration", fmt.Sprintf("%.0fs", metadata.Duration)},
			{"Captions", metadata.HasCaptions},
		})
		if len(metadata.Tags) > 0 {
			t.AppendRow(table.Row{"Tags", strings.Join(metadata.Tags, ", ")})
		}
		for _, ch := range metadata.Chapters {
			t.AppendRow(table.Row{fmt.Sprintf("%.0f-%.0f", ch.StartTime, ch.EndTime), ch.Title})
		}
		t.Render()
		return nil
	},
}

func init() {
	metadataCmd.Flags().Bool("json", false, "Print metadata as JSON")
	rootCmd.AddCommand(metadataCmd)
}
