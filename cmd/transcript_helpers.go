package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

// uploadFlag returns the --file flag as an Upload, or nil
func uploadFlag(cmd *cobra.Command) (*internal.Upload, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil, nil
	}
	if !internal.FileExists(path) {
		return nil, fmt.Errorf("media file not found: %s", path)
	}
	return &internal.Upload{Name: filepath.Base(path), Path: path}, nil
}

// fetchTranscript resolves the transcript of arg through every tier.
// Without --fallback-whisper the user is asked before the paid tier.
func fetchTranscript(cmd *cobra.Command, app *internal.App, arg string) (*internal.TranscriptResult, error) {
	upload, err := uploadFlag(cmd)
	if err != nil {
		return nil, err
	}

	spinner := app.UI().NewSpinner("Resolving transcript")
	defer spinner.Finish()

	resolver := app.Resolver()
	resolver.OnStage = spinner.Describe

	if arg == "" {
		if upload == nil {
			return nil, fmt.Errorf("a YouTube URL or --file is required")
		}
		return app.TranscribeUpload(cmd.Context(), upload)
	}

	youtubeURL, _, err := internal.ParseArg(arg)
	if err != nil {
		return nil, err
	}

	fallbackWhisper, _ := cmd.Flags().GetBool("fallback-whisper")
	if !fallbackWhisper {
		resolver.Confirm = func(videoURL string) bool {
			spinner.Finish()
			return internal.AskUser(fmt.Sprintf("No captions for %s. Transcribe the audio with Whisper (costs money)?", videoURL))
		}
	}

	return app.ResolveTranscript(cmd.Context(), youtubeURL, upload)
}

// firstArg returns args[0] trimmed, or "" when there are no args
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}
