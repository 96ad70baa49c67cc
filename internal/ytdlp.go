package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"
)

// VideoMetadata contains YouTube video information
type VideoMetadata struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Channel     string         `json:"channel"`
	Uploader    string         `json:"uploader"`
	Duration    float64        `json:"duration"`
	Categories  []string       `json:"categories"`
	Tags        []string       `json:"tags"`
	Chapters    []VideoChapter `json:"chapters"`
	HasCaptions bool           `json:"has_captions"`
}

// VideoChapter represents a video chapter marker
type VideoChapter struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// AudioSource downloads the audio track of a video and returns the local file path.
// Expected failures are ErrBlocked and ErrNoAudio.
type AudioSource interface {
	Audio(ctx context.Context, youtubeURL string) (string, error)
}

// YouTube wraps yt-dlp for metadata, subtitles and audio
type YouTube struct {
	tempDir string
	cache   *Cache
	verbose bool
}

var ytdlpInstall sync.Once

// NewYouTube creates a yt-dlp backed YouTube client. cache may be nil.
func NewYouTube(tempDir string, cache *Cache, verbose bool) *YouTube {
	return &YouTube{
		tempDir: tempDir,
		cache:   cache,
		verbose: verbose,
	}
}

// ensureInstalled downloads a yt-dlp binary once per process when none is on PATH
func ensureInstalled(ctx context.Context) {
	ytdlpInstall.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			slog.Warn("yt-dlp install failed, relying on PATH", slog.Any("error", err))
		}
	})
}

// hardened applies the options that get past most bot checks on server IPs
func hardened(dl *ytdlp.Command) *ytdlp.Command {
	return dl.
		UserAgent(browserUA).
		AddHeaders("Accept-Language:pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7").
		ExtractorArgs("youtube:player_client=android,web").
		Retries("3").
		FragmentRetries("3").
		NoPlaylist()
}

// Metadata fetches video details using go-ytdlp
func (yt *YouTube) Metadata(ctx context.Context, youtubeURL string) (*VideoMetadata, error) {
	videoID, err := ExtractVideoID(youtubeURL)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context) (*VideoMetadata, error) {
		ensureInstalled(ctx)
		slog.Debug("extracting video metadata", slog.String("id", videoID))

		dl := hardened(ytdlp.New()).
			DumpSingleJSON().
			SkipDownload()

		result, err := dl.Run(ctx, youtubeURL)
		if err != nil {
			return nil, fmt.Errorf("extracting video metadata: %w", classifyYtdlp(err, result))
		}

		// raw map first to read subtitle availability
		var rawData map[string]any
		if err := json.Unmarshal([]byte(result.Stdout), &rawData); err != nil {
			return nil, fmt.Errorf("parsing video metadata: %w", err)
		}

		var metadata VideoMetadata
		if err := json.Unmarshal([]byte(result.Stdout), &metadata); err != nil {
			return nil, fmt.Errorf("parsing video metadata: %w", err)
		}
		metadata.HasCaptions = extractSubtitleInfo(rawData)

		slog.Debug("metadata extracted",
			slog.String("title", metadata.Title),
			slog.String("channel", metadata.Channel),
			slog.Float64("duration", metadata.Duration),
			slog.Int("chapters", len(metadata.Chapters)))
		return &metadata, nil
	}

	if yt.cache == nil {
		return fetch(ctx)
	}
	return MemoJSON(ctx, yt.cache, CacheKey("metadata", videoID), fetch)
}

// Captions downloads subtitles with yt-dlp, converts them to SRT and flattens them to text.
// It implements CaptionSource.
func (yt *YouTube) Captions(ctx context.Context, videoID string, langs []string) (string, error) {
	ensureInstalled(ctx)

	if err := EnsureDirs(yt.tempDir); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	workDir, err := os.MkdirTemp(yt.tempDir, "subs-")
	if err != nil {
		return "", fmt.Errorf("creating subtitle directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	slog.Debug("downloading subtitles", slog.String("id", videoID), slog.Any("langs", langs))

	dl := hardened(ytdlp.New()).
		WriteSubs().
		WriteAutoSubs().
		SubLangs(strings.Join(langs, ",")).
		ConvertSubs("srt").
		SkipDownload().
		Output(filepath.Join(workDir, "%(id)s"))

	result, err := dl.Run(ctx, NormalizeVideoURL(videoID))
	if err != nil {
		return "", fmt.Errorf("downloading subtitles: %w", classifyYtdlp(err, result))
	}

	files, err := filepath.Glob(filepath.Join(workDir, videoID+"*.srt"))
	if err != nil || len(files) == 0 {
		return "", ErrNoCaptions
	}

	path := pickSubtitleFile(files, videoID, langs)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading SRT file: %w", err)
	}

	text := strings.Join(removeDuplicates(parseSRT(string(content))), "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty subtitle file", ErrNoCaptions)
	}
	return text, nil
}

// Audio downloads the best audio stream as mp3 into the temp dir.
// The caller owns the returned file.
func (yt *YouTube) Audio(ctx context.Context, youtubeURL string) (string, error) {
	ensureInstalled(ctx)

	videoID, err := ExtractVideoID(youtubeURL)
	if err != nil {
		return "", err
	}
	if err := EnsureDirs(yt.tempDir); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}

	slog.Debug("downloading audio", slog.String("id", videoID))

	dl := hardened(ytdlp.New()).
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("5").
		Output(filepath.Join(yt.tempDir, "%(id)s.%(ext)s"))

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", classifyYtdlp(err, result))
	}

	outputFile := filepath.Join(yt.tempDir, videoID+".mp3")
	if !FileExists(outputFile) {
		return "", ErrNoAudio
	}
	return outputFile, nil
}

// classifyYtdlp maps yt-dlp stderr to the expected sentinel errors
func classifyYtdlp(err error, result *ytdlp.Result) error {
	if result == nil {
		return err
	}
	stderr := result.Stderr
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "sign in to confirm"),
		strings.Contains(lower, "http error 403"),
		strings.Contains(lower, "http error 429"),
		strings.Contains(lower, "confirm you're not a bot"),
		strings.Contains(lower, "requested format is not available"):
		return fmt.Errorf("%w: %s", ErrBlocked, lastLine(stderr))
	case strings.Contains(lower, "there are no subtitles"),
		strings.Contains(lower, "no subtitles"):
		return ErrNoCaptions
	}
	if stderr != "" {
		return errors.Join(err, errors.New(lastLine(stderr)))
	}
	return err
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// pickSubtitleFile prefers files named <id>.<lang>.srt in language order
func pickSubtitleFile(files []string, videoID string, langs []string) string {
	for _, lang := range langs {
		want := videoID + "." + lang + ".srt"
		for _, f := range files {
			if strings.EqualFold(filepath.Base(f), want) {
				return f
			}
		}
	}
	return files[0]
}

// parseSRT extracts text content from SRT format
func parseSRT(content string) []string {
	var lines []string

	content = strings.ReplaceAll(content, "\r\n", "\n")
	for block := range strings.SplitSeq(content, "\n\n") {
		blockLines := strings.Split(strings.TrimSpace(block), "\n")
		if len(blockLines) >= 3 {
			// sequence number and timestamp first
			for i := 2; i < len(blockLines); i++ {
				if line := strings.TrimSpace(blockLines[i]); line != "" {
					lines = append(lines, line)
				}
			}
		}
	}

	return lines
}

// removeDuplicates eliminates consecutive repeated lines
func removeDuplicates(lines []string) []string {
	result := make([]string, 0, len(lines))
	prevLine := ""

	for _, line := range lines {
		isDuplicate := prevLine != "" && (strings.Contains(line, prevLine) || strings.Contains(prevLine, line))
		if !isDuplicate {
			result = append(result, line)
		}
		prevLine = line
	}

	return result
}

// extractSubtitleInfo extracts subtitle availability from yt-dlp JSON output
func extractSubtitleInfo(rawData map[string]any) bool {
	if subtitles, ok := rawData["subtitles"].(map[string]any); ok && len(subtitles) > 0 {
		return true
	}
	if autoCaptions, ok := rawData["automatic_captions"].(map[string]any); ok && len(autoCaptions) > 0 {
		return true
	}
	return false
}
