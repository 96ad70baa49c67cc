package internal

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// youtubeURLPattern accepts youtube.com/watch?v=ID and youtu.be/ID anywhere in the input
var youtubeURLPattern = regexp.MustCompile(`(https?://)?(www\.)?(youtube\.com/watch\?v=|youtu\.be/)[\w\-]+`)

var (
	watchIDPattern = regexp.MustCompile(`[?&]v=([^&]+)`)
	shortIDPattern = regexp.MustCompile(`youtu\.be/([^?&]+)`)
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ValidateYouTubeURL reports whether s contains a watch or short YouTube URL with a non-empty ID
func ValidateYouTubeURL(s string) bool {
	if s == "" {
		return false
	}
	return youtubeURLPattern.MatchString(s)
}

// ExtractVideoID returns the video ID of a watch or short YouTube URL
func ExtractVideoID(youtubeURL string) (string, error) {
	youtubeURL = strings.TrimSpace(youtubeURL)
	if !ValidateYouTubeURL(youtubeURL) {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, youtubeURL)
	}

	// Full URLs go through net/url so fragments and extra params are dropped
	if u, err := url.Parse(youtubeURL); err == nil && u.Host != "" {
		switch strings.TrimPrefix(u.Host, "www.") {
		case "youtube.com", "m.youtube.com":
			if v := u.Query().Get("v"); v != "" {
				return v, nil
			}
		case "youtu.be":
			if id := strings.Trim(u.Path, "/"); id != "" {
				return id, nil
			}
		}
	}

	if m := watchIDPattern.FindStringSubmatch(youtubeURL); m != nil {
		return m[1], nil
	}
	if m := shortIDPattern.FindStringSubmatch(youtubeURL); m != nil {
		return m[1], nil
	}

	return "", fmt.Errorf("could not extract video ID from URL: %s", youtubeURL)
}

// NormalizeVideoURL returns the canonical watch URL for a video ID
func NormalizeVideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ParseArg turns a CLI argument (URL or bare video ID) into a watch URL and its video ID
func ParseArg(arg string) (string, string, error) {
	arg = strings.TrimSpace(arg)
	if IsValidYouTubeID(arg) {
		return NormalizeVideoURL(arg), arg, nil
	}
	id, err := ExtractVideoID(arg)
	if err != nil {
		return "", "", err
	}
	return arg, id, nil
}

// IsValidYouTubeID checks if a string looks like a valid YouTube video ID
func IsValidYouTubeID(id string) bool {
	// YouTube video IDs are exactly 11 characters long
	if len(id) != 11 {
		return false
	}
	return videoIDPattern.MatchString(id)
}

// HashText returns a short content hash used in cache keys
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// AskUser is a variable that holds the function for asking user confirmation
// This allows it to be replaced in tests
var AskUser = func(message string) bool {
	fmt.Printf("%s (y/N): ", message)
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		response := strings.ToLower(strings.TrimSpace(scanner.Text()))
		return strings.HasPrefix(response, "y")
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
	return false
}

// CleanupTempDir purges files from a temporary directory
func CleanupTempDir(tempDir string) error {
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return fmt.Errorf("reading temp directory: %w", err)
	}

	for _, entry := range entries {
		filePath := filepath.Join(tempDir, entry.Name())
		if err := os.RemoveAll(filePath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove temporary file %s: %v\n", filePath, err)
		}
	}

	// It's okay if we can't remove the directory itself
	if err := os.Remove(tempDir); err != nil {
		fmt.Fprintf(os.Stderr, "Note: could not remove temp directory %s: %v\n", tempDir, err)
	}

	return nil
}

// getTerminalWidth gets terminal width with fallback
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}

	if width > 10 {
		return width - 4
	}

	return width
}

// RenderMarkdown renders markdown content with glamour
func RenderMarkdown(content string) (string, error) {
	width := getTerminalWidth()
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(termenv.EnvColorProfile()),
	)
	if err != nil {
		return "", fmt.Errorf("creating terminal renderer: %w", err)
	}

	renderedContent, err := r.Render(content)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	return renderedContent, nil
}

// FileExists checks if a file exists
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

// ValidateModel rejects empty or malformed model names
func ValidateModel(model string) error {
	if strings.TrimSpace(model) == "" || strings.ContainsAny(model, " \t\n") {
		return fmt.Errorf("invalid model name: %q", model)
	}
	return nil
}

// EnsureDirs creates directories if needed
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" || FileExists(dir) {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// cleanupFiles removes temporary files
func cleanupFiles(files ...string) {
	for _, file := range files {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove file %s: %v\n", file, err)
		}
	}
}

// ValidateOpenAIAPIKey checks if the OpenAI API key is set and returns a standardized error if not
func ValidateOpenAIAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("OpenAI API key is required - set it in config.toml, .env or the OPENAI_API_KEY environment variable")
	}
	return nil
}
