package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fakeCaptions struct {
	text  string
	err   error
	calls int
}

func (f *fakeCaptions) Captions(ctx context.Context, videoID string, langs []string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeAudio struct {
	path  string
	err   error
	calls int
}

func (f *fakeAudio) Audio(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeSTT struct {
	text  string
	err   error
	files []string
}

func (f *fakeSTT) Transcribe(ctx context.Context, audioFile string) (string, error) {
	f.files = append(f.files, audioFile)
	return f.text, f.err
}

type fakeConverter struct {
	calls int
}

func (f *fakeConverter) Extract(ctx context.Context, mediaFile string) (string, error) {
	f.calls++
	return mediaFile + "_audio.mp3", nil
}

func newTestResolver(captions *fakeCaptions, audio *fakeAudio, stt *fakeSTT) (*Resolver, *Cache) {
	cache := NewMemoryCache(time.Hour, 0)
	return NewResolver([]CaptionSource{captions}, audio, stt, &fakeConverter{}, cache, []string{"en"}), cache
}

func TestResolveTiers(t *testing.T) {
	unexpected := errors.New("parser exploded")

	tests := []struct {
		name       string
		captions   fakeCaptions
		audio      fakeAudio
		stt        fakeSTT
		upload     *Upload
		wantSource TranscriptSource
		wantText   string
		wantErr    error
		wantAudio  int
	}{
		{
			name:       "captions win",
			captions:   fakeCaptions{text: "from captions"},
			wantSource: SourceCaption,
			wantText:   "from captions",
		},
		{
			name:       "no captions falls back to speech-to-text",
			captions:   fakeCaptions{err: ErrNoCaptions},
			audio:      fakeAudio{path: "/tmp/does-not-exist.mp3"},
			stt:        fakeSTT{text: "from whisper"},
			wantSource: SourceSpeechToText,
			wantText:   "from whisper",
			wantAudio:  1,
		},
		{
			name:       "blocked captions fall back to speech-to-text",
			captions:   fakeCaptions{err: ErrBlocked},
			audio:      fakeAudio{path: "/tmp/does-not-exist.mp3"},
			stt:        fakeSTT{text: "from whisper"},
			wantSource: SourceSpeechToText,
			wantText:   "from whisper",
			wantAudio:  1,
		},
		{
			name:       "empty captions count as missing",
			captions:   fakeCaptions{text: "  "},
			audio:      fakeAudio{path: "/tmp/does-not-exist.mp3"},
			stt:        fakeSTT{text: "from whisper"},
			wantSource: SourceSpeechToText,
			wantText:   "from whisper",
			wantAudio:  1,
		},
		{
			name:       "both blocked uses the upload",
			captions:   fakeCaptions{err: ErrBlocked},
			audio:      fakeAudio{err: ErrBlocked},
			stt:        fakeSTT{text: "from upload"},
			upload:     &Upload{Name: "talk.mp3", Path: "/tmp/talk.mp3"},
			wantSource: SourceUploadedFile,
			wantText:   "from upload",
			wantAudio:  1,
		},
		{
			name:      "both blocked without upload asks for one",
			captions:  fakeCaptions{err: ErrNoCaptions},
			audio:     fakeAudio{err: ErrBlocked},
			wantErr:   ErrNeedsUpload,
			wantAudio: 1,
		},
		{
			name:      "no audio file produced is expected",
			captions:  fakeCaptions{err: ErrNoCaptions},
			audio:     fakeAudio{err: ErrNoAudio},
			wantErr:   ErrNeedsUpload,
			wantAudio: 1,
		},
		{
			name:     "unexpected caption error propagates",
			captions: fakeCaptions{err: unexpected},
			wantErr:  unexpected,
		},
		{
			name:      "unexpected audio error propagates",
			captions:  fakeCaptions{err: ErrNoCaptions},
			audio:     fakeAudio{err: unexpected},
			upload:    &Upload{Name: "talk.mp3", Path: "/tmp/talk.mp3"},
			wantErr:   unexpected,
			wantAudio: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestResolver(&tt.captions, &tt.audio, &tt.stt)

			result, err := r.Resolve(context.Background(), testVideoURL, tt.upload)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantAudio, tt.audio.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, result.Source)
			assert.Equal(t, tt.wantText, result.Text)
			assert.Equal(t, "dQw4w9WgXcQ", result.VideoID)
			assert.Equal(t, tt.wantAudio, tt.audio.calls)
		})
	}
}

func TestResolveInvalidURL(t *testing.T) {
	r, _ := newTestResolver(&fakeCaptions{}, &fakeAudio{}, &fakeSTT{})
	_, err := r.Resolve(context.Background(), "https://vimeo.com/123", nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestResolveCachesAutomaticTiers(t *testing.T) {
	ctx := context.Background()
	captions := &fakeCaptions{err: ErrNoCaptions}
	audio := &fakeAudio{path: "/tmp/does-not-exist.mp3"}
	stt := &fakeSTT{text: "from whisper"}
	r, _ := newTestResolver(captions, audio, stt)

	for range 3 {
		result, err := r.Resolve(ctx, testVideoURL, nil)
		require.NoError(t, err)
		assert.Equal(t, SourceSpeechToText, result.Source)
	}
	assert.Equal(t, 1, captions.calls)
	assert.Equal(t, 1, audio.calls)
	assert.Len(t, stt.files, 1)

	// the short URL form shares the cache entry
	result, err := r.Resolve(ctx, "https://youtu.be/dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	assert.Equal(t, "from whisper", result.Text)
	assert.Equal(t, 1, captions.calls)

	require.NoError(t, r.Forget(ctx, testVideoURL))
	_, err = r.Resolve(ctx, testVideoURL, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, captions.calls)
}

func TestResolveDoesNotCacheUploads(t *testing.T) {
	ctx := context.Background()
	captions := &fakeCaptions{err: ErrBlocked}
	audio := &fakeAudio{err: ErrBlocked}
	stt := &fakeSTT{text: "from upload"}
	r, _ := newTestResolver(captions, audio, stt)
	upload := &Upload{Name: "talk.mp3", Path: "/tmp/talk.mp3"}

	for range 2 {
		result, err := r.Resolve(ctx, testVideoURL, upload)
		require.NoError(t, err)
		assert.Equal(t, SourceUploadedFile, result.Source)
	}
	assert.Equal(t, 2, captions.calls)
	assert.Len(t, stt.files, 2)
}

func TestResolveConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("declined without upload", func(t *testing.T) {
		audio := &fakeAudio{path: "/tmp/x.mp3"}
		r, _ := newTestResolver(&fakeCaptions{err: ErrNoCaptions}, audio, &fakeSTT{text: "t"})
		r.Confirm = func(string) bool { return false }

		_, err := r.Resolve(ctx, testVideoURL, nil)
		assert.ErrorIs(t, err, ErrDeclined)
		assert.Zero(t, audio.calls)
	})

	t.Run("declined with upload skips to the upload", func(t *testing.T) {
		audio := &fakeAudio{path: "/tmp/x.mp3"}
		r, _ := newTestResolver(&fakeCaptions{err: ErrNoCaptions}, audio, &fakeSTT{text: "uploaded"})
		r.Confirm = func(string) bool { return false }

		result, err := r.Resolve(ctx, testVideoURL, &Upload{Name: "a.wav", Path: "/tmp/a.wav"})
		require.NoError(t, err)
		assert.Equal(t, SourceUploadedFile, result.Source)
		assert.Zero(t, audio.calls)
	})

	t.Run("not asked when captions exist", func(t *testing.T) {
		r, _ := newTestResolver(&fakeCaptions{text: "captions"}, &fakeAudio{}, &fakeSTT{})
		asked := false
		r.Confirm = func(string) bool { asked = true; return true }

		_, err := r.Resolve(ctx, testVideoURL, nil)
		require.NoError(t, err)
		assert.False(t, asked)
	})
}

func TestResolveCaptionSourcesInOrder(t *testing.T) {
	first := &fakeCaptions{err: ErrBlocked}
	second := &fakeCaptions{text: "second source"}
	cache := NewMemoryCache(time.Hour, 0)
	r := NewResolver([]CaptionSource{first, second}, nil, nil, nil, cache, []string{"en"})

	result, err := r.ResolveCaptions(context.Background(), testVideoURL)
	require.NoError(t, err)
	assert.Equal(t, "second source", result.Text)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestResolveUpload(t *testing.T) {
	tests := []struct {
		name        string
		upload      *Upload
		wantErr     error
		wantConvert int
	}{
		{name: "mp3 as is", upload: &Upload{Name: "a.mp3", Path: "/tmp/a.mp3"}},
		{name: "extension from path", upload: &Upload{Path: "/tmp/b.M4A"}},
		{name: "mov is always converted", upload: &Upload{Name: "c.mov", Path: "/tmp/c.mov"}, wantConvert: 1},
		{name: "small mp4 is not converted", upload: &Upload{Name: "d.mp4", Path: "/tmp/does-not-exist.mp4"}},
		{name: "unsupported extension", upload: &Upload{Name: "notes.pdf", Path: "/tmp/notes.pdf"}, wantErr: ErrUnsupportedMedia},
		{name: "missing upload", upload: nil, wantErr: ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stt := &fakeSTT{text: "hello"}
			conv := &fakeConverter{}
			r := NewResolver(nil, nil, stt, conv, nil, nil)

			result, err := r.ResolveUpload(context.Background(), tt.upload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SourceUploadedFile, result.Source)
			assert.Equal(t, tt.wantConvert, conv.calls)
		})
	}
}

func TestResolveUploadEmptyTranscript(t *testing.T) {
	r := NewResolver(nil, nil, &fakeSTT{text: " "}, nil, nil, nil)
	_, err := r.ResolveUpload(context.Background(), &Upload{Name: "a.mp3", Path: "/tmp/a.mp3"})
	assert.Error(t, err)
}

func TestResolveReportsStages(t *testing.T) {
	r, _ := newTestResolver(&fakeCaptions{err: ErrNoCaptions}, &fakeAudio{path: "/tmp/x.mp3"}, &fakeSTT{text: "t"})
	var stages []string
	r.OnStage = func(s string) { stages = append(stages, s) }

	_, err := r.Resolve(context.Background(), testVideoURL, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fetching captions...", "Downloading audio...", "Transcribing with Whisper..."}, stages)
}
