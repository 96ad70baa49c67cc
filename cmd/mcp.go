package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/ilumeo/aimarketing/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server",
	Long: `Run a Model Context Protocol (MCP) server that exposes aimarketing as tools.

Tools:
- get_youtube_metadata: video metadata and caption availability
- get_youtube_transcript: captions, or Whisper with allow_whisper
- youtube_to_blog: blog post from a video transcript
- survey_insights: ETL plus strategic insights for an .xlsx survey
- multichannel_content: LinkedIn, blog, one page and press release from insights

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  aimarketing mcp

  # Run MCP server with HTTP transport on port 8080
  aimarketing mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  aimarketing mcp setup-claude`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		// stdout belongs to the protocol in stdio mode
		config.Verbose = false
		config.Quiet = true
		closeLog()
		closeLog = internal.InitLogging(config, transport != "http")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app := internal.NewApp(config)
		defer app.Close()

		mcpServer := internal.NewMCPServer(app, version)
		return mcpServer.Start(cmd.Context(), transport, port)
	},
}

// setupClaudeCmd represents the setup-claude subcommand
var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Configure Claude Desktop to use the aimarketing MCP server",
	Long: `Configure Claude Desktop to use aimarketing as an MCP server.

This command will:
- Detect Claude Desktop installation and config location
- Add the aimarketing MCP server configuration to claude_desktop_config.json
- Preserve existing MCP server configurations
- Set appropriate XDG environment variables for the current platform`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupClaudeDesktop()
	},
}

// ClaudeDesktopConfig represents the claude_desktop_config.json structure
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents an individual MCP server configuration
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// setupClaudeDesktop implements the setup-claude subcommand
func setupClaudeDesktop() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	configPath, err := getClaudeDesktopConfigPath()
	if err != nil {
		return fmt.Errorf("getting Claude Desktop config path: %w", err)
	}

	// Claude Desktop creates the file on first start
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("config for Claude Desktop not found at %s", configPath)
	}
	if err != nil {
		return fmt.Errorf("reading existing config: %w", err)
	}

	// The server must resolve the same config and cache as this shell
	env := map[string]string{
		"XDG_DATA_HOME":   xdg.DataHome,
		"XDG_CONFIG_HOME": xdg.ConfigHome,
		"XDG_CACHE_HOME":  xdg.CacheHome,
	}

	data, err = addDesktopServer(data, internal.AppName, MCPServerConfig{
		Command: execPath,
		Args:    []string{"mcp"},
		Env:     env,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Configured Claude Desktop MCP server %q in %s\n", internal.AppName, configPath)
	fmt.Printf("Restart Claude Desktop to use it\n")
	return nil
}

// addDesktopServer sets one entry of mcpServers and keeps every other key of the file
func addDesktopServer(data []byte, name string, server MCPServerConfig) ([]byte, error) {
	raw := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing existing config: %w", err)
		}
	}

	var desktop ClaudeDesktopConfig
	if servers, ok := raw["mcpServers"]; ok {
		if err := json.Unmarshal(servers, &desktop.MCPServers); err != nil {
			return nil, fmt.Errorf("parsing mcpServers: %w", err)
		}
	}
	if desktop.MCPServers == nil {
		desktop.MCPServers = make(map[string]MCPServerConfig)
	}
	desktop.MCPServers[name] = server

	servers, err := json.Marshal(desktop.MCPServers)
	if err != nil {
		return nil, fmt.Errorf("marshaling servers: %w", err)
	}
	raw["mcpServers"] = servers

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return out, nil
}

// getClaudeDesktopConfigPath returns claude_desktop_config.json under the
// platform config dir (Application Support, %AppData% or ~/.config)
func getClaudeDesktopConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "Claude", "claude_desktop_config.json"), nil
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
