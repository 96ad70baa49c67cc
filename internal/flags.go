package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddTranscriptionFlags adds flags related to transcript resolution
func AddTranscriptionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fallback-whisper", false, "Use Whisper without asking when no captions are available (costs money)")
	cmd.Flags().StringP("file", "f", "", "Audio or video file to transcribe when the URL cannot be (mp3, wav, m4a, mp4, mov, webm)")
}

// AddOpenAIFlags adds flags related to OpenAI API functionality
func AddOpenAIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "OpenAI model to use for generation")
	cmd.Flags().StringP("prompt", "p", "", "Custom prompt (string or file path)")
}

// HandlePromptFlag applies the --prompt flag as an override of the named template
func HandlePromptFlag(cmd *cobra.Command, app *App, name string) error {
	promptFlag := cmd.Flags().Lookup("prompt")
	if promptFlag == nil || !promptFlag.Changed {
		return nil
	}

	prompt, err := cmd.Flags().GetString("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if prompt == "" {
		return nil
	}

	if err := app.Prompts().Override(name, prompt); err != nil {
		return err
	}

	if IsLikelyFilePath(prompt) {
		app.UI().Verbose("Using custom prompt file: %s\n", prompt)
	} else {
		app.UI().Verbose("Using custom prompt string\n")
	}
	return nil
}

// HandleVerboseFlag processes the --verbose and --quiet flags to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("failed to get verbose flag: %w", err)
		}
		config.Verbose = verbose
	}
	if f := cmd.Flags().Lookup("quiet"); f != nil && f.Changed {
		quiet, err := cmd.Flags().GetBool("quiet")
		if err != nil {
			return fmt.Errorf("failed to get quiet flag: %w", err)
		}
		config.Quiet = quiet
	}
	return nil
}

// ValidateOpenAIRequirements validates the OpenAI API key and applies --model to every generation model
func ValidateOpenAIRequirements(cmd *cobra.Command, config *Config) error {
	if err := ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
		return err
	}

	modelFlag, _ := cmd.Flags().GetString("model")
	if modelFlag != "" {
		if err := ValidateModel(modelFlag); err != nil {
			return err
		}
		config.LLMModel = modelFlag
		config.InsightsModel = modelFlag
		config.BlogModel = modelFlag
		return nil
	}

	for _, model := range []string{config.LLMModel, config.InsightsModel, config.BlogModel} {
		if err := ValidateModel(model); err != nil {
			return fmt.Errorf("invalid model in config: %w", err)
		}
	}
	return nil
}
