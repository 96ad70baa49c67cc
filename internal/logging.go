package internal

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// InitLogging installs the default slog logger.
// In MCP stdio mode stdout belongs to the protocol, so logs go to
// <cache>/mcp.log when mcp_log is enabled and nowhere otherwise.
// The returned func closes the log file, if any.
func InitLogging(config *Config, mcpStdio bool) func() {
	level := slog.LevelInfo
	if config.Verbose {
		level = slog.LevelDebug
	} else if config.Quiet {
		level = slog.LevelWarn
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() {}
	)

	if mcpStdio {
		w = io.Discard
		if config.MCPLogEnabled {
			if f, err := openLogFile(config.CacheDir, "mcp.log"); err == nil {
				w = f
				closeFn = func() { _ = f.Close() }
				level = slog.LevelDebug
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return closeFn
}

func openLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
