package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilumeo/aimarketing/internal/etl"
)

var errPlaceholder = errors.New("model answered with a placeholder")

// App holds the application state and dependencies
type App struct {
	config        *Config
	cache         *Cache
	youtube       *YouTube
	audio         *Audio
	ai            *AI
	completer     Completer
	promptManager *PromptManager
	resolver      *Resolver
	etlRunner     etl.Runner
	ui            UIManager
}

// NewApp initializes the application
func NewApp(config *Config, options ...AppOption) *App {
	cmdRunner := &DefaultCommandRunner{}

	cache := NewCache(context.Background(), CacheOptions{
		TTL:        config.CacheTTL,
		MaxEntries: config.CacheMaxEntries,
		Backend:    config.CacheBackend,
		RedisURL:   config.RedisURL,
		SQLitePath: filepath.Join(config.DataDir, "cache.db"),
	})

	audio := NewAudio(cmdRunner, config.TempDir)
	ai := NewAIWithKey(config.OpenAIAPIKey, audio, AIOptions{
		WhisperLimit:      WhisperLimit,
		WhisperLanguage:   config.WhisperLanguage,
		WhisperTimeout:    config.WhisperTimeout,
		Timeout:           config.SummaryTimeout,
		RequestsPerMinute: config.LLMRequestsPerMinute,
	})
	youtube := NewYouTube(config.TempDir, cache, config.Verbose)

	var etlRunner etl.Runner = etl.NewXLSXRunner(config.ETLOutput)
	if config.ETLCommand != "" {
		etlRunner = etl.NewCommandRunner(cmdRunner, config.ETLCommand, config.ETLOutput)
	}

	app := &App{
		config:        config,
		cache:         cache,
		youtube:       youtube,
		audio:         audio,
		ai:            ai,
		completer:     ai,
		promptManager: NewPromptManager(config.PromptsDir),
		resolver: NewResolver(
			[]CaptionSource{NewCaptionFetcher(nil), youtube},
			youtube, ai, audio, cache, config.CaptionLanguages),
		etlRunner: etlRunner,
		ui:        NewUIManager(config.Verbose, config.Quiet),
	}

	for _, option := range options {
		option(app)
	}

	return app
}

// AppOption customizes App creation
type AppOption func(*App)

// WithCompleter replaces the LLM client used for text generation
func WithCompleter(c Completer) AppOption {
	return func(a *App) {
		a.completer = c
	}
}

// WithResolver sets a custom transcript resolver
func WithResolver(r *Resolver) AppOption {
	return func(a *App) {
		a.resolver = r
	}
}

// WithCache replaces the content-hash cache
func WithCache(c *Cache) AppOption {
	return func(a *App) {
		a.cache = c
	}
}

// WithETLRunner sets the survey ETL implementation
func WithETLRunner(r etl.Runner) AppOption {
	return func(a *App) {
		a.etlRunner = r
	}
}

// WithPromptManager sets a custom prompt manager
func WithPromptManager(pm *PromptManager) AppOption {
	return func(a *App) {
		a.promptManager = pm
	}
}

// Config returns the loaded configuration
func (app *App) Config() *Config {
	return app.config
}

// Prompts returns the prompt manager, e.g. to apply a --prompt override
func (app *App) Prompts() *PromptManager {
	return app.promptManager
}

// UI returns the terminal UI manager
func (app *App) UI() UIManager {
	return app.ui
}

// Resolver returns the transcript resolver
func (app *App) Resolver() *Resolver {
	return app.resolver
}

// Close releases the cache backend
func (app *App) Close() error {
	hits, misses := app.CacheStats()
	slog.Debug("cache stats", slog.Int64("hits", hits), slog.Int64("misses", misses))
	return app.cache.Close()
}

// ResolveTranscript runs the tiered transcript resolution for videoURL
func (app *App) ResolveTranscript(ctx context.Context, videoURL string, upload *Upload) (*TranscriptResult, error) {
	start := time.Now()
	result, err := app.resolver.Resolve(ctx, videoURL, upload)
	if err != nil {
		return nil, err
	}
	slog.Info("transcript resolved",
		slog.String("id", result.VideoID),
		slog.String("source", result.Source.String()),
		slog.Int("chars", len(result.Text)),
		slog.Duration("took", time.Since(start)))
	return result, nil
}

// CaptionTranscript returns the transcript only when captions exist
func (app *App) CaptionTranscript(ctx context.Context, videoURL string) (*TranscriptResult, error) {
	return app.resolver.ResolveCaptions(ctx, videoURL)
}

// TranscribeUpload transcribes a media file without a video URL
func (app *App) TranscribeUpload(ctx context.Context, upload *Upload) (*TranscriptResult, error) {
	return app.resolver.ResolveUpload(ctx, upload)
}

// ForgetTranscript drops the cached transcript of videoURL
func (app *App) ForgetTranscript(ctx context.Context, videoURL string) error {
	return app.resolver.Forget(ctx, videoURL)
}

// Metadata gets metadata from YouTube (cached or fresh)
func (app *App) Metadata(ctx context.Context, videoURL string) (*VideoMetadata, error) {
	return app.youtube.Metadata(ctx, videoURL)
}

func (app *App) crew(agent Agent, model string, temperature float64) *Crew {
	return &Crew{
		Agent:       agent,
		Completer:   app.completer,
		Prompts:     app.promptManager,
		Model:       model,
		Temperature: temperature,
		Language:    app.config.ContentLanguage,
		Concurrency: app.config.ContentConcurrency,
		Denylist:    app.config.PlaceholderDenylist,
	}
}

// GenerateBlog writes a blog post from a transcript. Results are cached by
// content hash; regenerate drops the cached post first.
func (app *App) GenerateBlog(ctx context.Context, transcript string, regenerate bool) (string, error) {
	return app.generateBlog(ctx, transcript, nil, regenerate)
}

// GenerateVideoBlog is GenerateBlog with the video title and channel in the prompt
// when metadata can be fetched.
func (app *App) GenerateVideoBlog(ctx context.Context, videoURL, transcript string, regenerate bool) (string, error) {
	metadata, err := app.Metadata(ctx, videoURL)
	if err != nil {
		slog.Debug("blog without metadata", slog.Any("error", err))
	}
	return app.generateBlog(ctx, transcript, metadata, regenerate)
}

func (app *App) generateBlog(ctx context.Context, transcript string, metadata *VideoMetadata, regenerate bool) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("blog: transcript %w", ErrEmptyInput)
	}

	data := PromptData{Input: transcript}
	if metadata != nil {
		data.Title = metadata.Title
		data.Channel = metadata.Channel
	}

	key := CacheKey("blog", HashText(transcript), data.Title, app.config.BlogModel)
	if regenerate {
		app.cache.Delete(ctx, key)
	}

	out, err := app.cache.Memo(ctx, key, func(ctx context.Context) ([]byte, error) {
		crew := app.crew(VideoBlogAgent, app.config.BlogModel, 0)
		results, err := crew.Run(ctx, []Task{videoBlogTask}, data)
		if err != nil {
			return nil, fmt.Errorf("generating blog: %w", err)
		}
		if results[0] == "" {
			return nil, errPlaceholder
		}
		return []byte(results[0]), nil
	})
	if errors.Is(err, errPlaceholder) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// RunSurvey runs the ETL on a spreadsheet and writes the JSON summary
func (app *App) RunSurvey(ctx context.Context, xlsxPath string) (*etl.Result, error) {
	result, err := app.etlRunner.Run(ctx, xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("running survey etl: %w", err)
	}
	if result.JSON == "" {
		return nil, fmt.Errorf("survey etl produced no summary: %w", ErrEmptyInput)
	}
	slog.Info("survey processed",
		slog.String("file", filepath.Base(xlsxPath)),
		slog.Int("respondents", result.Respondents),
		slog.Int("questions", result.Questions()))
	return result, nil
}

// LoadSurvey reads the last JSON summary written by the ETL
func (app *App) LoadSurvey(ctx context.Context) (*etl.Result, error) {
	return etl.LoadSummary(ctx, app.config.ETLOutput)
}

// SurveyOutputPath is the fixed location of the JSON summary
func (app *App) SurveyOutputPath() string {
	return app.config.ETLOutput
}

// GenerateInsights asks the analyst agent for strategic insights on the ETL JSON.
// A placeholder answer yields "" with no error. Answers are cached by content hash.
func (app *App) GenerateInsights(ctx context.Context, etlJSON string) (string, error) {
	if strings.TrimSpace(etlJSON) == "" {
		return "", fmt.Errorf("insights: survey data %w", ErrEmptyInput)
	}

	key := CacheKey("insights", HashText(etlJSON), app.config.InsightsModel, app.config.ContentLanguage)
	out, err := app.cache.Memo(ctx, key, func(ctx context.Context) ([]byte, error) {
		crew := app.crew(InsightAgent, app.config.InsightsModel, app.config.LLMTemperature)
		results, err := crew.Run(ctx, []Task{insightTask}, PromptData{Input: etlJSON})
		if err != nil {
			return nil, fmt.Errorf("generating insights: %w", err)
		}
		if results[0] == "" {
			return nil, errPlaceholder
		}
		return []byte(results[0]), nil
	})
	if errors.Is(err, errPlaceholder) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// GenerateContent writes the four channel texts from insights
func (app *App) GenerateContent(ctx context.Context, insights string) (ChannelContent, error) {
	if strings.TrimSpace(insights) == "" {
		return ChannelContent{}, fmt.Errorf("content: insights %w", ErrEmptyInput)
	}

	crew := app.crew(ContentAgent, app.config.LLMModel, app.config.LLMTemperature)
	results, err := crew.Run(ctx, ContentTasks, PromptData{Input: insights})
	if err != nil {
		return ChannelContent{}, fmt.Errorf("generating content: %w", err)
	}
	return channelContentFrom(results), nil
}

// ClearCache drops every cached transcript, insight and blog post
func (app *App) ClearCache(ctx context.Context) error {
	return app.cache.Clear(ctx)
}

// CacheStats returns the cache hit and miss counters
func (app *App) CacheStats() (hits, misses int64) {
	return app.cache.Stats()
}
