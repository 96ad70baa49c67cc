package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateYouTubeURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"watch url without www", "https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"watch url without scheme", "youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", true},
		{"short url with params", "https://youtu.be/dQw4w9WgXcQ?t=42", true},
		{"watch url with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1", true},
		{"empty", "", false},
		{"plain text", "hello world", false},
		{"other host", "https://vimeo.com/123456", false},
		{"watch without id", "https://www.youtube.com/watch?v=", false},
		{"short without id", "https://youtu.be/", false},
		{"channel page", "https://www.youtube.com/@somechannel", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateYouTubeURL(tt.url))
		})
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s#frag", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"not a url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ExtractVideoID(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArg(t *testing.T) {
	url, id, err := ParseArg("dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", url)
	assert.Equal(t, "dQw4w9WgXcQ", id)

	url, id, err = ParseArg(" https://youtu.be/dQw4w9WgXcQ ")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", url)
	assert.Equal(t, "dQw4w9WgXcQ", id)

	_, _, err = ParseArg("serve")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestHashText(t *testing.T) {
	a := HashText("transcript one")
	assert.Len(t, a, 16)
	assert.Equal(t, a, HashText("transcript one"))
	assert.NotEqual(t, a, HashText("transcript two"))
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Contains(t, UserMessage(ErrQuotaExceeded), "429")
	assert.Contains(t, UserMessage(ErrNeedsUpload), "Upload")
	assert.Contains(t, UserMessage(assert.AnError), "Unexpected error")
}

func TestTranscriptSourceText(t *testing.T) {
	for _, src := range []TranscriptSource{SourceCaption, SourceSpeechToText, SourceUploadedFile} {
		text, err := src.MarshalText()
		require.NoError(t, err)
		var got TranscriptSource
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, src, got)
	}
}
