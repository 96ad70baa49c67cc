package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
	"github.com/ilumeo/aimarketing/internal/etl"
)

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Survey ETL, insights and multichannel content",
	Long: `Process a survey export (.xlsx) into frequency tables, turn the tables
into strategic insights, and the insights into a LinkedIn post, a blog
article, an executive one page and a press release.

The ETL writes its JSON summary to a fixed path (etl_output in the config)
so later steps can run without the spreadsheet.`,
}

var surveyETLCmd = &cobra.Command{
	Use:   "etl [file.xlsx]",
	Short: "Run the ETL and print the frequency tables",
	Example: `  aimarketing survey etl responses.xlsx
  aimarketing survey etl responses.xlsx --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)
		defer app.Close()

		result, err := app.RunSurvey(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			fmt.Println(result.JSON)
			return nil
		}
		etl.Render(os.Stdout, result)
		for _, line := range result.Logs {
			app.UI().Verbose("etl: %s\n", line)
		}
		if !config.Quiet {
			fmt.Fprintf(os.Stderr, "Summary written to %s\n", app.SurveyOutputPath())
		}
		return nil
	},
}

var surveyInsightsCmd = &cobra.Command{
	Use:   "insights [file.xlsx]",
	Short: "Generate strategic insights from a survey",
	Long: `Generate strategic insights from a survey. Without a file the last
ETL summary is used.`,
	Example: `  aimarketing survey insights responses.xlsx
  aimarketing survey insights -o insights.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		app := internal.NewApp(config)
		defer app.Close()

		if err := internal.HandlePromptFlag(cmd, app, internal.PromptInsights); err != nil {
			return err
		}

		insights, err := surveyInsights(cmd, app, firstArg(args))
		if err != nil {
			return err
		}
		return writeMarkdown(cmd, insights)
	},
}

var surveyContentCmd = &cobra.Command{
	Use:   "content [insights.md]",
	Short: "Write the four channel texts from insights",
	Long: `Write a LinkedIn post, a blog article, an executive one page and a
press release from insights. Reads stdin when the file is "-" or missing.`,
	Example: `  aimarketing survey content insights.md
  aimarketing survey insights | aimarketing survey content --raw`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}

		insights, err := readInput(firstArg(args))
		if err != nil {
			return err
		}

		app := internal.NewApp(config)
		defer app.Close()

		spinner := app.UI().NewSpinner("Writing channel content")
		content, err := app.GenerateContent(cmd.Context(), insights)
		spinner.Finish()
		if err != nil {
			return cliError(err)
		}
		return writeMarkdown(cmd, content.Markdown())
	},
}

var surveyRunCmd = &cobra.Command{
	Use:   "run [file.xlsx]",
	Short: "Run ETL, insights and content in one go",
	Example: `  aimarketing survey run responses.xlsx -o campaign.md`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		app := internal.NewApp(config)
		defer app.Close()

		if err := internal.HandlePromptFlag(cmd, app, internal.PromptInsights); err != nil {
			return err
		}

		insights, err := surveyInsights(cmd, app, args[0])
		if err != nil {
			return err
		}

		spinner := app.UI().NewSpinner("Writing channel content")
		content, err := app.GenerateContent(cmd.Context(), insights)
		spinner.Finish()
		if err != nil {
			return cliError(err)
		}

		doc := "# Insights\n\n" + insights + "\n\n---\n\n" + content.Markdown()
		return writeMarkdown(cmd, doc)
	},
}

// surveyInsights runs the ETL on xlsxPath, or loads the last summary when
// xlsxPath is empty, and asks for insights
func surveyInsights(cmd *cobra.Command, app *internal.App, xlsxPath string) (string, error) {
	var (
		result *etl.Result
		err    error
	)
	if xlsxPath != "" {
		result, err = app.RunSurvey(cmd.Context(), xlsxPath)
	} else {
		result, err = app.LoadSurvey(cmd.Context())
		if err != nil {
			err = fmt.Errorf("no survey processed yet, pass an .xlsx file: %w", err)
		}
	}
	if err != nil {
		return "", err
	}
	app.UI().Verbose("Survey: %d respondents, %d questions\n", result.Respondents, result.Questions())

	spinner := app.UI().NewSpinner("Generating insights")
	insights, err := app.GenerateInsights(cmd.Context(), result.JSON)
	spinner.Finish()
	if err != nil {
		return "", cliError(err)
	}
	if insights == "" {
		return "", errors.New("the model returned a placeholder instead of insights, run again")
	}
	return insights, nil
}

// readInput reads a file, or stdin for "" and "-"
func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading insights: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("raw", false, "Print markdown without terminal rendering")
	cmd.Flags().StringP("output", "o", "", "Write the result to a file")
}

func init() {
	surveyETLCmd.Flags().Bool("json", false, "Print the JSON summary instead of tables")

	internal.AddOpenAIFlags(surveyInsightsCmd)
	addOutputFlags(surveyInsightsCmd)

	surveyContentCmd.Flags().StringP("model", "m", "", "OpenAI model to use for generation")
	addOutputFlags(surveyContentCmd)

	internal.AddOpenAIFlags(surveyRunCmd)
	addOutputFlags(surveyRunCmd)

	surveyCmd.AddCommand(surveyETLCmd, surveyInsightsCmd, surveyContentCmd, surveyRunCmd)
	rootCmd.AddCommand(surveyCmd)
}
