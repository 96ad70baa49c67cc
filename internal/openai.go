package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"
)

// ChatRequest is a single system+user chat completion
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
}

// ChatClient defines the OpenAI operations the app needs
type ChatClient interface {
	CreateTranscription(ctx context.Context, file *os.File, language string) (string, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// SpeechToText turns a local audio file into text
type SpeechToText interface {
	Transcribe(ctx context.Context, audioFile string) (string, error)
}

// OpenAIClient wraps the official OpenAI Go SDK
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: &client}
}

// CreateTranscription implements the transcription method
func (c *OpenAIClient) CreateTranscription(ctx context.Context, file *os.File, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	}
	if language != "" {
		params.Language = openai.String(language)
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CreateChatCompletion implements the chat completion method
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// AIOptions configures NewAI
type AIOptions struct {
	WhisperLimit      int64
	WhisperLanguage   string
	WhisperTimeout    time.Duration
	Timeout           time.Duration
	RequestsPerMinute int
}

// AI handles OpenAI API interactions for transcription and text generation
type AI struct {
	client     ChatClient
	audio      *Audio
	opts       AIOptions
	limiter    *rate.Limiter
	apiKey     string
	clientOnce sync.Once
}

// NewAI creates a new AI processor
func NewAI(client ChatClient, audio *Audio, opts AIOptions) *AI {
	ai := newAI(audio, opts)
	ai.client = client
	return ai
}

// NewAIWithKey creates a new AI processor with lazy client initialization
func NewAIWithKey(apiKey string, audio *Audio, opts AIOptions) *AI {
	ai := newAI(audio, opts)
	ai.apiKey = apiKey
	return ai
}

func newAI(audio *Audio, opts AIOptions) *AI {
	if opts.WhisperLimit <= 0 {
		opts.WhisperLimit = WhisperLimit
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	return &AI{
		audio:   audio,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// ensureClient initializes the OpenAI client if needed
func (ai *AI) ensureClient() error {
	ai.clientOnce.Do(func() {
		if ai.client == nil && ai.apiKey != "" {
			ai.client = NewOpenAIClient(ai.apiKey)
		}
	})
	if ai.client == nil {
		return ValidateOpenAIAPIKey("")
	}
	return nil
}

// Transcribe transcribes audio using OpenAI's Whisper API.
// Files over the Whisper size limit are split with ffmpeg first.
func (ai *AI) Transcribe(ctx context.Context, audioFile string) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}

	slog.Debug("transcribing audio file", slog.String("file", audioFile))

	info, err := os.Stat(audioFile)
	if err != nil {
		return "", fmt.Errorf("getting audio file info: %w", err)
	}

	numChunks := int(math.Ceil(float64(info.Size()) / float64(ai.opts.WhisperLimit)))

	chunks := []string{audioFile}
	if numChunks > 1 {
		if ai.audio == nil {
			return "", fmt.Errorf("audio file exceeds %d bytes and no splitter is configured", ai.opts.WhisperLimit)
		}
		chunks, err = ai.audio.Split(ctx, audioFile, numChunks)
		if err != nil {
			return "", fmt.Errorf("splitting audio: %w", err)
		}
		defer cleanupFiles(chunks...)
	}

	if ai.opts.WhisperTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.opts.WhisperTimeout)
		defer cancel()
	}

	transcript, err := ai.processAudioChunks(ctx, chunks)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return transcript, nil
}

// processAudioChunks transcribes audio chunks sequentially
// NOTE: concurrent chunk uploads once returned a broken transcript for one chunk
func (ai *AI) processAudioChunks(ctx context.Context, chunks []string) (string, error) {
	numChunks := len(chunks)

	var sb strings.Builder
	for i, chunkPath := range chunks {
		if err := ai.limiter.Wait(ctx); err != nil {
			return "", err
		}

		file, err := os.Open(chunkPath)
		if err != nil {
			return "", fmt.Errorf("opening chunk %s: %w", chunkPath, err)
		}

		text, err := ai.client.CreateTranscription(ctx, file, ai.opts.WhisperLanguage)
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close chunk", slog.String("file", chunkPath), slog.Any("error", closeErr))
		}
		if err != nil {
			return "", fmt.Errorf("transcribing chunk %d: %w", i+1, mapAPIError(err))
		}

		sb.WriteString(strings.TrimSpace(text))
		if i < numChunks-1 {
			sb.WriteString("\n")
		}

		slog.Debug("transcribed chunk", slog.Int("chunk", i+1), slog.Int("of", numChunks))
	}

	return sb.String(), nil
}

// Complete runs one chat completion under the shared rate limit and timeout
func (ai *AI) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}
	if err := ValidateModel(req.Model); err != nil {
		return "", err
	}

	if ai.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ai.opts.Timeout)
		defer cancel()
	}

	if err := ai.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	start := time.Now()
	content, err := ai.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", mapAPIError(err))
	}
	slog.Debug("chat completion",
		slog.String("model", req.Model),
		slog.Int("prompt_chars", len(req.Prompt)),
		slog.Int("answer_chars", len(content)),
		slog.Duration("took", time.Since(start)))

	return content, nil
}

// mapAPIError turns quota errors into ErrQuotaExceeded
func mapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
