package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptRenderEmbedded(t *testing.T) {
	pm := NewPromptManager(t.TempDir())

	for _, name := range []string{PromptInsights, PromptLinkedIn, PromptBlog, PromptOnePage, PromptRelease, PromptVideoBlog} {
		t.Run(name, func(t *testing.T) {
			out, err := pm.Render(name, PromptData{Input: "INPUT-MARKER", Language: "Portuguese"})
			require.NoError(t, err)
			assert.Contains(t, out, "INPUT-MARKER")
			assert.Contains(t, out, "Portuguese")
		})
	}
}

func TestPromptRenderVideoMetadata(t *testing.T) {
	pm := NewPromptManager("")

	out, err := pm.Render(PromptVideoBlog, PromptData{Input: "t", Title: "Coffee trends", Channel: "Acme"})
	require.NoError(t, err)
	assert.Contains(t, out, "Video title: Coffee trends")
	assert.Contains(t, out, "Channel: Acme")

	out, err = pm.Render(PromptVideoBlog, PromptData{Input: "t"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Video title:")
}

func TestPromptLookupOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptBlog+".txt"), []byte("user file {{.Input}}"), 0644))
	pm := NewPromptManager(dir)

	out, err := pm.Render(PromptBlog, PromptData{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "user file x", out)

	require.NoError(t, pm.Override(PromptBlog, "inline {{.Input}}"))
	out, err = pm.Render(PromptBlog, PromptData{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "inline x", out)
}

func TestPromptOverrideFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file: {{.Input}}"), 0644))

	pm := NewPromptManager("")
	require.NoError(t, pm.Override(PromptInsights, path))
	out, err := pm.Render(PromptInsights, PromptData{Input: "data"})
	require.NoError(t, err)
	assert.Equal(t, "from file: data", out)

	assert.Error(t, pm.Override(PromptInsights, "/does/not/exist.txt"))
}

func TestPromptErrors(t *testing.T) {
	pm := NewPromptManager("")

	_, err := pm.Render("nope", PromptData{})
	assert.Error(t, err)

	require.NoError(t, pm.Override(PromptBlog, "{{.Input"))
	_, err = pm.Render(PromptBlog, PromptData{})
	assert.Error(t, err)
}

func TestIsLikelyFilePath(t *testing.T) {
	tests := map[string]bool{
		"prompts/blog.txt":       true,
		"custom.md":              true,
		`C:\prompts\x.txt`:       true,
		"tldr: {{.Input}}":       false,
		"write a post\nabout it": false,
		"just words":             false,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsLikelyFilePath(in), in)
	}
}
