package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// MediaConverter turns a media container into an mp3 file
type MediaConverter interface {
	Extract(ctx context.Context, mediaFile string) (string, error)
}

// Upload is a user supplied media file already written to disk.
// The caller owns Path.
type Upload struct {
	Name string
	Path string
}

// UploadExtensions are the media types accepted for the upload tier
var UploadExtensions = []string{"mp3", "wav", "m4a", "mp4", "mov", "webm"}

// containers Whisper does not accept as is
var convertAlways = map[string]bool{"mov": true}

// video containers worth shrinking to audio when over the size limit
var videoContainers = map[string]bool{"mp4": true, "mov": true, "webm": true}

// Resolver finds a transcript for a video by trying captions, then audio
// extraction with speech-to-text, then an uploaded file.
type Resolver struct {
	captions  []CaptionSource
	audio     AudioSource
	stt       SpeechToText
	converter MediaConverter
	cache     *Cache
	langs     []string

	// Confirm is asked before the paid speech-to-text tier. nil means yes.
	Confirm func(videoURL string) bool
	// OnStage reports progress, e.g. to a spinner
	OnStage func(stage string)
}

// NewResolver wires the tiers. captions are tried in order.
func NewResolver(captions []CaptionSource, audio AudioSource, stt SpeechToText, converter MediaConverter, cache *Cache, langs []string) *Resolver {
	return &Resolver{
		captions:  captions,
		audio:     audio,
		stt:       stt,
		converter: converter,
		cache:     cache,
		langs:     langs,
	}
}

func transcriptKey(videoID string) string {
	return CacheKey("transcript", videoID)
}

// isExpected reports failures that mean "try the next tier"
func isExpected(err error) bool {
	return errors.Is(err, ErrNoCaptions) || errors.Is(err, ErrBlocked) || errors.Is(err, ErrNoAudio)
}

func (r *Resolver) stage(s string) {
	if r.OnStage != nil {
		r.OnStage(s)
	}
}

// Resolve returns the transcript of videoURL. upload is optional and only used
// when both automatic tiers fail with an expected error.
func (r *Resolver) Resolve(ctx context.Context, videoURL string, upload *Upload) (*TranscriptResult, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	if cached, ok := r.cached(ctx, videoID); ok {
		slog.Debug("transcript cache hit", slog.String("id", videoID), slog.String("source", cached.Source.String()))
		return cached, nil
	}

	// Tier 1: captions
	result, lastErr := r.fromCaptions(ctx, videoID)
	if lastErr == nil {
		return result, nil
	}
	if !isExpected(lastErr) {
		return nil, lastErr
	}

	// Tier 2: audio + speech-to-text
	if r.audio != nil && r.stt != nil {
		if r.Confirm != nil && !r.Confirm(videoURL) {
			if upload == nil {
				return nil, ErrDeclined
			}
		} else {
			audioResult, err := r.transcribeAudio(ctx, videoURL, videoID)
			if err == nil {
				return r.store(ctx, audioResult), nil
			}
			if !isExpected(err) {
				return nil, err
			}
			slog.Info("audio extraction failed", slog.String("id", videoID), slog.Any("reason", err))
			lastErr = err
		}
	}

	// Tier 3: uploaded file, never cached
	if upload == nil {
		return nil, fmt.Errorf("%w: %v", ErrNeedsUpload, lastErr)
	}
	result, err = r.ResolveUpload(ctx, upload)
	if err != nil {
		return nil, err
	}
	result.VideoID = videoID
	return result, nil
}

// ResolveCaptions runs only the free caption tier (and the cache)
func (r *Resolver) ResolveCaptions(ctx context.Context, videoURL string) (*TranscriptResult, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	if cached, ok := r.cached(ctx, videoID); ok {
		return cached, nil
	}
	return r.fromCaptions(ctx, videoID)
}

// fromCaptions tries every caption source in order. It returns the last
// expected error when all of them fail that way.
func (r *Resolver) fromCaptions(ctx context.Context, videoID string) (*TranscriptResult, error) {
	r.stage("Fetching captions...")
	lastErr := ErrNoCaptions
	for _, src := range r.captions {
		text, err := src.Captions(ctx, videoID, r.langs)
		if err == nil && strings.TrimSpace(text) != "" {
			return r.store(ctx, &TranscriptResult{Text: text, Source: SourceCaption, VideoID: videoID}), nil
		}
		if err == nil {
			err = ErrNoCaptions
		}
		if !isExpected(err) {
			return nil, fmt.Errorf("fetching captions: %w", err)
		}
		slog.Info("captions unavailable", slog.String("id", videoID), slog.Any("reason", err))
		lastErr = err
	}
	return nil, lastErr
}

func (r *Resolver) transcribeAudio(ctx context.Context, videoURL, videoID string) (*TranscriptResult, error) {
	r.stage("Downloading audio...")
	audioFile, err := r.audio.Audio(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	defer cleanupFiles(audioFile)

	r.stage("Transcribing with Whisper...")
	text, err := r.stt.Transcribe(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("speech-to-text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speech-to-text returned no text: %w", ErrNoAudio)
	}
	return &TranscriptResult{Text: text, Source: SourceSpeechToText, VideoID: videoID}, nil
}

// ResolveUpload transcribes an uploaded media file. The result is not cached.
func (r *Resolver) ResolveUpload(ctx context.Context, upload *Upload) (*TranscriptResult, error) {
	if upload == nil || upload.Path == "" {
		return nil, ErrEmptyInput
	}
	if r.stt == nil {
		return nil, errors.New("speech-to-text is not configured")
	}

	name := upload.Name
	if name == "" {
		name = filepath.Base(upload.Path)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if !isUploadExtension(ext) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, name)
	}

	audioFile := upload.Path
	if r.converter != nil && needsConversion(ext, upload.Path) {
		r.stage("Extracting audio...")
		converted, err := r.converter.Extract(ctx, upload.Path)
		if err != nil {
			return nil, fmt.Errorf("extracting audio from %s: %w", name, err)
		}
		defer cleanupFiles(converted)
		audioFile = converted
	}

	r.stage("Transcribing with Whisper...")
	text, err := r.stt.Transcribe(ctx, audioFile)
	if err != nil {
		return nil, fmt.Errorf("speech-to-text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speech-to-text returned no text for %s", name)
	}
	return &TranscriptResult{Text: text, Source: SourceUploadedFile}, nil
}

// Forget drops the cached transcript of videoURL
func (r *Resolver) Forget(ctx context.Context, videoURL string) error {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Delete(ctx, transcriptKey(videoID))
	}
	return nil
}

func (r *Resolver) cached(ctx context.Context, videoID string) (*TranscriptResult, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, ok := r.cache.Get(ctx, transcriptKey(videoID))
	if !ok {
		return nil, false
	}
	var result TranscriptResult
	if err := json.Unmarshal(data, &result); err != nil || result.Text == "" {
		r.cache.Delete(ctx, transcriptKey(videoID))
		return nil, false
	}
	return &result, true
}

func (r *Resolver) store(ctx context.Context, result *TranscriptResult) *TranscriptResult {
	if r.cache == nil {
		return result
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("encoding transcript for cache", slog.Any("error", err))
		return result
	}
	r.cache.Set(ctx, transcriptKey(result.VideoID), data)
	return result
}

func isUploadExtension(ext string) bool {
	return slices.Contains(UploadExtensions, ext)
}

func needsConversion(ext, path string) bool {
	if convertAlways[ext] {
		return true
	}
	if !videoContainers[ext] {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > WhisperLimit
}
