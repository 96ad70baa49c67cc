package cmd

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

// cpCmd copies the transcript to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [YouTube URL or ID]",
	Short: "Copy a transcript to the clipboard",
	Example: `  # Copy the transcript of a YouTube video
  aimarketing cp "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  aimarketing cp tAP1eZYEuKA

  # Use Whisper without asking if no captions are available (costs money)
  aimarketing cp tAP1eZYEuKA --fallback-whisper`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)
		defer app.Close()

		result, err := fetchTranscript(cmd, app, firstArg(args))
		if err != nil {
			return cliError(err)
		}

		if err := clipboard.WriteAll(result.Text); err != nil {
			return fmt.Errorf("copying transcript to clipboard: %w", err)
		}

		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "Transcript copied to clipboard (%s, %d chars)\n", result.Source, len(result.Text))
		}

		return nil
	},
}

func init() {
	internal.AddTranscriptionFlags(cpCmd)
	rootCmd.AddCommand(cpCmd)
}
