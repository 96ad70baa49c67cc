package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
	"github.com/ilumeo/aimarketing/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	Long: `Start the browser UI with the survey and YouTube flows.

Each browser gets its own session. Clicking a generation button counts as
authorization for the paid model call, including Whisper.`,
	Example: `  aimarketing serve
  aimarketing serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			config.ListenAddr = addr
		}

		app := internal.NewApp(config)
		defer app.Close()

		srv, err := web.NewServer(app, web.Options{
			TempDir:     config.TempDir,
			MaxUploadMB: config.MaxUploadMB,
			SessionTTL:  config.SessionTTL,
		})
		if err != nil {
			return err
		}

		if !config.Quiet {
			cmd.Printf("Listening on %s\n", config.ListenAddr)
		}
		return srv.Listen(cmd.Context(), config.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8501)")
	serveCmd.Flags().StringP("model", "m", "", "OpenAI model to use for generation")
	rootCmd.AddCommand(serveCmd)
}
