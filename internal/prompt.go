package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Prompt template names, one file per name under the prompts directory
const (
	PromptInsights  = "insights"
	PromptLinkedIn  = "linkedin"
	PromptBlog      = "blog"
	PromptOnePage   = "one_page"
	PromptRelease   = "release"
	PromptVideoBlog = "video_blog"
)

// PromptData for template injection
type PromptData struct {
	Input       string
	Language    string
	Title       string
	Channel     string
	Description string
}

// PromptManager handles loading and processing prompt templates
type PromptManager struct {
	promptsDir string
	overrides  map[string]string
}

// NewPromptManager creates a prompt manager reading user templates from promptsDir
func NewPromptManager(promptsDir string) *PromptManager {
	return &PromptManager{
		promptsDir: promptsDir,
		overrides:  make(map[string]string),
	}
}

// Override replaces one template with a file path or an inline template string
func (pm *PromptManager) Override(name, setting string) error {
	if setting == "" {
		return nil
	}
	if IsLikelyFilePath(setting) {
		if !FileExists(setting) {
			return fmt.Errorf("prompt file not found: %s", setting)
		}
		content, err := os.ReadFile(setting)
		if err != nil {
			return fmt.Errorf("reading prompt file: %w", err)
		}
		setting = string(content)
	}
	pm.overrides[name] = setting
	return nil
}

// Render executes the named template with data
func (pm *PromptManager) Render(name string, data PromptData) (string, error) {
	content, err := pm.load(name)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// load returns the override, the user file, or the embedded default, in that order
func (pm *PromptManager) load(name string) (string, error) {
	if s, ok := pm.overrides[name]; ok {
		return s, nil
	}

	if pm.promptsDir != "" {
		path := filepath.Join(pm.promptsDir, name+".txt")
		if FileExists(path) {
			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading prompt template: %w", err)
			}
			return string(content), nil
		}
	}

	content, err := defaultFS.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return string(content), nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "{{") || strings.Contains(s, "\n") {
		return false
	}

	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	if strings.HasSuffix(s, ".txt") || strings.HasSuffix(s, ".md") ||
		strings.HasSuffix(s, ".template") || strings.HasSuffix(s, ".tmpl") {
		return true
	}

	// long strings are prompts
	if len(s) > 200 {
		return false
	}

	return !strings.Contains(s, " ")
}
