package internal

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppName is used for XDG directories and the env prefix.
const AppName = "aimarketing"

// CommandRunner executes external commands
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner implements CommandRunner
type DefaultCommandRunner struct{}

func (r *DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Config holds application settings
type Config struct {
	// Language models
	LLMModel             string
	InsightsModel        string
	BlogModel            string
	LLMTemperature       float64
	LLMRequestsPerMinute int
	SummaryTimeout       time.Duration
	OpenAIAPIKey         string

	// Transcription
	WhisperTimeout   time.Duration
	WhisperLanguage  string
	CaptionLanguages []string

	// Content generation
	ContentLanguage     string
	ContentConcurrency  int
	PlaceholderDenylist []string

	// Cache
	CacheTTL        time.Duration
	CacheMaxEntries int
	CacheBackend    string
	RedisURL        string

	// Survey ETL
	ETLCommand string
	ETLOutput  string

	// Web
	ListenAddr  string
	SessionTTL  time.Duration
	MaxUploadMB int

	Verbose       bool
	Quiet         bool
	MCPLogEnabled bool

	// Fixed XDG paths (not configurable)
	ConfigDir  string
	DataDir    string
	CacheDir   string
	TempDir    string
	PromptsDir string
}

//go:embed config.toml prompts/*.txt
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by OpenAI's Whisper API (25 MiB)
const WhisperLimit int64 = 25 << 20

// ensureDefaultFile checks if a file exists in the target directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(targetDir, embedFilename, description string) error {
	filePath := filepath.Join(targetDir, filepath.Base(embedFilename))

	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", description, err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	slog.Debug("created default file", slog.String("kind", description), slog.String("path", filePath))
	return nil
}

// EnsureDefaultConfig checks if a config file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultPrompts copies every embedded prompt template into promptsDir
// unless a file with the same name is already there.
func EnsureDefaultPrompts(promptsDir string) error {
	entries, err := fs.ReadDir(defaultFS, "prompts")
	if err != nil {
		return fmt.Errorf("listing embedded prompts: %w", err)
	}
	for _, entry := range entries {
		name := "prompts/" + entry.Name()
		if err := ensureDefaultFile(promptsDir, name, "prompt template"); err != nil {
			return err
		}
	}
	return nil
}

// InitConfig initializes Viper and loads configuration
func InitConfig() *Config {
	// .env values become regular environment variables before viper reads them
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error reading .env file: %v\n", err)
	}

	configDir := filepath.Join(xdg.ConfigHome, AppName)
	dataDir := filepath.Join(xdg.DataHome, AppName)
	cacheDir := filepath.Join(xdg.CacheHome, AppName)

	v := newViper(configDir, dataDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	config := configFromViper(v)
	config.ConfigDir = configDir
	config.DataDir = dataDir
	config.CacheDir = cacheDir
	config.TempDir = filepath.Join(cacheDir, "temp")
	config.PromptsDir = filepath.Join(configDir, "prompts")

	if config.Verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}

func newViper(configDir, dataDir string) *viper.Viper {
	v := viper.New()

	v.SetDefault("llm_model", "gpt-4o")
	v.SetDefault("insights_model", "")
	v.SetDefault("blog_model", "")
	v.SetDefault("llm_temperature", 0.0)
	v.SetDefault("llm_requests_per_minute", 20)
	v.SetDefault("summary_timeout", 3*time.Minute)

	v.SetDefault("whisper_timeout", 10*time.Minute)
	v.SetDefault("whisper_language", "pt")
	v.SetDefault("caption_languages", []string{"pt", "pt-BR", "pt-PT", "en"})

	v.SetDefault("content_language", "Brazilian Portuguese")
	v.SetDefault("content_concurrency", 1)
	v.SetDefault("placeholder_denylist", []string{})

	v.SetDefault("cache_ttl", 24*time.Hour)
	v.SetDefault("cache_max_entries", 500)
	v.SetDefault("cache_backend", "sqlite")
	v.SetDefault("redis_url", "")

	v.SetDefault("etl_command", "")
	v.SetDefault("etl_output", filepath.Join(dataDir, "survey_result.json"))

	v.SetDefault("listen_addr", ":8501")
	v.SetDefault("session_ttl", 2*time.Hour)
	v.SetDefault("max_upload_mb", 200)

	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("mcp_log", false)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// OPENAI_API_KEY is honoured without the prefix
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")

	return v
}

func configFromViper(v *viper.Viper) *Config {
	config := &Config{
		LLMModel:             v.GetString("llm_model"),
		InsightsModel:        v.GetString("insights_model"),
		BlogModel:            v.GetString("blog_model"),
		LLMTemperature:       v.GetFloat64("llm_temperature"),
		LLMRequestsPerMinute: v.GetInt("llm_requests_per_minute"),
		SummaryTimeout:       v.GetDuration("summary_timeout"),
		OpenAIAPIKey:         v.GetString("openai_api_key"),

		WhisperTimeout:   v.GetDuration("whisper_timeout"),
		WhisperLanguage:  v.GetString("whisper_language"),
		CaptionLanguages: v.GetStringSlice("caption_languages"),

		ContentLanguage:     v.GetString("content_language"),
		ContentConcurrency:  v.GetInt("content_concurrency"),
		PlaceholderDenylist: v.GetStringSlice("placeholder_denylist"),

		CacheTTL:        v.GetDuration("cache_ttl"),
		CacheMaxEntries: v.GetInt("cache_max_entries"),
		CacheBackend:    v.GetString("cache_backend"),
		RedisURL:        v.GetString("redis_url"),

		ETLCommand: v.GetString("etl_command"),
		ETLOutput:  v.GetString("etl_output"),

		ListenAddr:  v.GetString("listen_addr"),
		SessionTTL:  v.GetDuration("session_ttl"),
		MaxUploadMB: v.GetInt("max_upload_mb"),

		Verbose:       v.GetBool("verbose"),
		Quiet:         v.GetBool("quiet"),
		MCPLogEnabled: v.GetBool("mcp_log"),
	}

	// empty model overrides fall back to the general model
	if config.InsightsModel == "" {
		config.InsightsModel = config.LLMModel
	}
	if config.BlogModel == "" {
		config.BlogModel = config.LLMModel
	}
	if config.ContentConcurrency < 1 {
		config.ContentConcurrency = 1
	}

	return config
}
