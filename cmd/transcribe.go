package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [YouTube URL or ID]",
	Short: "Print the transcript of a YouTube video or a media file",
	Example: `  # Transcript from captions, Whisper on the audio when there are none
  aimarketing transcribe "https://www.youtube.com/watch?v=tAP1eZYEuKA"

  # Skip the confirmation before Whisper (costs money)
  aimarketing transcribe tAP1eZYEuKA --fallback-whisper

  # Transcribe a local file
  aimarketing transcribe --file interview.m4a -o interview.txt

  # Forget the cached transcript and resolve it again
  aimarketing transcribe tAP1eZYEuKA --refresh`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := firstArg(args)
		app := internal.NewApp(config)
		defer app.Close()

		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh && arg != "" {
			youtubeURL, _, err := internal.ParseArg(arg)
			if err != nil {
				return cliError(err)
			}
			if err := app.ForgetTranscript(cmd.Context(), youtubeURL); err != nil {
				return err
			}
		}

		result, err := fetchTranscript(cmd, app, arg)
		if err != nil {
			return cliError(err)
		}
		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "Source: %s\n", result.Source)
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			return os.WriteFile(output, []byte(result.Text+"\n"), 0644)
		}
		fmt.Println(result.Text)
		return nil
	},
}

func init() {
	internal.AddTranscriptionFlags(transcribeCmd)
	transcribeCmd.Flags().StringP("output", "o", "", "Write the transcript to a file")
	transcribeCmd.Flags().Bool("refresh", false, "Drop the cached transcript first")
	rootCmd.AddCommand(transcribeCmd)
}
