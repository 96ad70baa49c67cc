package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached transcripts, insights and posts",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)
		defer app.Close()

		if err := app.ClearCache(cmd.Context()); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		if !config.Quiet {
			fmt.Printf("Cache cleared (%s)\n", config.CacheBackend)
		}
		return nil
	},
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget [YouTube URL or ID]",
	Short: "Drop the cached transcript of one video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		youtubeURL, id, err := internal.ParseArg(args[0])
		if err != nil {
			return cliError(err)
		}

		app := internal.NewApp(config)
		defer app.Close()

		if err := app.ForgetTranscript(cmd.Context(), youtubeURL); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Printf("Forgot transcript of %s\n", id)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheForgetCmd)
	rootCmd.AddCommand(cacheCmd)
}
