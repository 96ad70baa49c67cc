package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDesktopServerKeepsOtherEntries(t *testing.T) {
	existing := []byte(`{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {
    "other": {"command": "/bin/other", "args": [], "env": {}}
  }
}`)

	out, err := addDesktopServer(existing, "aimarketing", MCPServerConfig{
		Command: "/usr/local/bin/aimarketing",
		Args:    []string{"mcp"},
		Env:     map[string]string{"XDG_CONFIG_HOME": "/home/u/.config"},
	})
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &got))
	assert.JSONEq(t, `"Ctrl+Space"`, string(got["globalShortcut"]))

	var servers map[string]MCPServerConfig
	require.NoError(t, json.Unmarshal(got["mcpServers"], &servers))
	assert.Equal(t, "/bin/other", servers["other"].Command)
	assert.Equal(t, []string{"mcp"}, servers["aimarketing"].Args)
	assert.Equal(t, "/home/u/.config", servers["aimarketing"].Env["XDG_CONFIG_HOME"])
}

func TestAddDesktopServerEmptyFile(t *testing.T) {
	out, err := addDesktopServer(nil, "aimarketing", MCPServerConfig{Command: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"aimarketing"`)
}

func TestAddDesktopServerInvalidJSON(t *testing.T) {
	_, err := addDesktopServer([]byte("{"), "aimarketing", MCPServerConfig{})
	assert.Error(t, err)
}
