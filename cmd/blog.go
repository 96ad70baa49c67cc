package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

var blogCmd = &cobra.Command{
	Use:   "blog [YouTube URL or ID]",
	Short: "Write a blog post from a YouTube video or a media file",
	Example: `  # Blog post from a YouTube video
  aimarketing blog "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  aimarketing blog tAP1eZYEuKA

  # Use Whisper without asking when there are no captions (costs money)
  aimarketing blog tAP1eZYEuKA --fallback-whisper

  # Blog post from a local recording
  aimarketing blog --file talk.mp4

  # Ignore the cached post
  aimarketing blog tAP1eZYEuKA --regenerate -o post.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBlog(cmd, firstArg(args))
	},
}

func addBlogFlags(cmd *cobra.Command) {
	internal.AddTranscriptionFlags(cmd)
	internal.AddOpenAIFlags(cmd)
	cmd.Flags().Bool("regenerate", false, "Ignore the cached post and write a new one")
	cmd.Flags().Bool("raw", false, "Print markdown without terminal rendering")
	cmd.Flags().StringP("output", "o", "", "Write the post to a file")
}

func runBlog(cmd *cobra.Command, arg string) error {
	if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
		return err
	}

	app := internal.NewApp(config)
	defer app.Close()

	if err := internal.HandlePromptFlag(cmd, app, internal.PromptVideoBlog); err != nil {
		return err
	}

	result, err := fetchTranscript(cmd, app, arg)
	if err != nil {
		return cliError(err)
	}
	app.UI().Verbose("Transcript: %s\n", result)

	regenerate, _ := cmd.Flags().GetBool("regenerate")

	spinner := app.UI().NewSpinner("Writing blog post")
	var post string
	if arg != "" {
		youtubeURL, _, _ := internal.ParseArg(arg)
		post, err = app.GenerateVideoBlog(cmd.Context(), youtubeURL, result.Text, regenerate)
	} else {
		post, err = app.GenerateBlog(cmd.Context(), result.Text, regenerate)
	}
	spinner.Finish()
	if err != nil {
		return cliError(err)
	}
	if post == "" {
		return errors.New("the model returned a placeholder instead of a blog post, run again with --regenerate")
	}

	return writeMarkdown(cmd, post)
}

// writeMarkdown prints content rendered for the terminal, raw with --raw,
// or to the --output file
func writeMarkdown(cmd *cobra.Command, content string) error {
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := os.WriteFile(output, []byte(content+"\n"), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "Saved to %s\n", output)
		}
		return nil
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		fmt.Println(content)
		return nil
	}

	rendered, err := internal.RenderMarkdown(content)
	if err != nil {
		fmt.Println(content)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

// cliError replaces errors the user can act on with their friendly message
func cliError(err error) error {
	switch {
	case errors.Is(err, internal.ErrInvalidURL),
		errors.Is(err, internal.ErrNeedsUpload),
		errors.Is(err, internal.ErrDeclined),
		errors.Is(err, internal.ErrQuotaExceeded),
		errors.Is(err, internal.ErrUnsupportedMedia),
		errors.Is(err, internal.ErrEmptyInput):
		msg := internal.UserMessage(err)
		if errors.Is(err, internal.ErrNeedsUpload) {
			msg += " Pass it with --file."
		}
		return errors.New(msg)
	default:
		return err
	}
}

func init() {
	addBlogFlags(blogCmd)
	rootCmd.AddCommand(blogCmd)
}
