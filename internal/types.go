package internal

import (
	"errors"
	"fmt"
)

// TranscriptSource identifies which resolver tier produced a transcript
type TranscriptSource int

const (
	SourceUnknown TranscriptSource = iota
	SourceCaption
	SourceSpeechToText
	SourceUploadedFile
)

// String returns the tag shown next to a transcript
func (s TranscriptSource) String() string {
	switch s {
	case SourceCaption:
		return "caption"
	case SourceSpeechToText:
		return "speech-to-text"
	case SourceUploadedFile:
		return "uploaded-file"
	default:
		return "unknown"
	}
}

// MarshalText lets the source travel through JSON caches as its tag
func (s TranscriptSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a tag written by MarshalText
func (s *TranscriptSource) UnmarshalText(text []byte) error {
	switch string(text) {
	case "caption":
		*s = SourceCaption
	case "speech-to-text":
		*s = SourceSpeechToText
	case "uploaded-file":
		*s = SourceUploadedFile
	default:
		*s = SourceUnknown
	}
	return nil
}

// TranscriptResult is the outcome of resolving a video transcript
type TranscriptResult struct {
	Text    string           `json:"text"`
	Source  TranscriptSource `json:"source"`
	VideoID string           `json:"video_id,omitempty"`
}

// String returns a formatted representation of the result
func (r *TranscriptResult) String() string {
	return fmt.Sprintf("TranscriptResult{source=%s, id=%s, chars=%d}", r.Source, r.VideoID, len(r.Text))
}

var (
	// ErrNoCaptions means the video has no usable caption track
	ErrNoCaptions = errors.New("no captions available")
	// ErrBlocked means YouTube refused the request (403, 429, sign-in wall)
	ErrBlocked = errors.New("request blocked by YouTube")
	// ErrNoAudio means yt-dlp finished without producing an audio file
	ErrNoAudio = errors.New("no audio file produced")
	// ErrNeedsUpload means automatic transcription failed and a media file is required
	ErrNeedsUpload = errors.New("automatic transcription failed, upload an audio or video file")
	// ErrDeclined means the user refused the paid speech-to-text tier
	ErrDeclined = errors.New("speech-to-text declined by user")
	// ErrInvalidURL means the input is not a YouTube watch or short URL
	ErrInvalidURL = errors.New("invalid YouTube URL")
	// ErrEmptyInput means an upstream result required for generation is empty
	ErrEmptyInput = errors.New("input is empty")
	// ErrQuotaExceeded means the OpenAI API answered 429
	ErrQuotaExceeded = errors.New("OpenAI quota exceeded")
	// ErrUnsupportedMedia means an uploaded file has an extension we cannot transcribe
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// UserMessage turns an error into the message shown at the UI boundary
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "Invalid URL. Paste a valid YouTube URL (youtube.com/watch?v=... or youtu.be/...)."
	case errors.Is(err, ErrNeedsUpload):
		return "Could not transcribe automatically from the URL (YouTube may block this server). " +
			"Upload an audio or video file to transcribe it with Whisper."
	case errors.Is(err, ErrDeclined):
		return "Transcription cancelled."
	case errors.Is(err, ErrQuotaExceeded):
		return "Your OpenAI key has no quota or credit left (error 429). Check billing and the API key."
	case errors.Is(err, ErrUnsupportedMedia):
		return "Unsupported file type. Use mp3, wav, m4a, mp4, mov or webm."
	case errors.Is(err, ErrEmptyInput):
		return "Nothing to work with yet. Complete the previous step first."
	default:
		return fmt.Sprintf("Unexpected error: %v", err)
	}
}
