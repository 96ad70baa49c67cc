package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	mu          sync.Mutex
	chats       []ChatRequest
	transcribed []string
	languages   []string
	chatErr     error
}

func (f *fakeChatClient) CreateTranscription(ctx context.Context, file *os.File, language string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribed = append(f.transcribed, filepath.Base(file.Name()))
	f.languages = append(f.languages, language)
	return " " + string(data) + " ", nil
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return "reply to " + req.Prompt, nil
}

// fakeFFmpeg answers ffprobe with a duration and writes every ffmpeg output file
type fakeFFmpeg struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeFFmpeg) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()

	if name == "ffprobe" {
		return []byte("90.5\n"), nil
	}
	output := args[len(args)-1]
	return nil, os.WriteFile(output, []byte(filepath.Base(output)), 0644)
}

func TestAICompleteForwardsRequest(t *testing.T) {
	client := &fakeChatClient{}
	ai := NewAI(client, nil, AIOptions{})

	out, err := ai.Complete(context.Background(), ChatRequest{Model: "gpt-4o", System: "sys", Prompt: "hi", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "reply to hi", out)
	require.Len(t, client.chats, 1)
	assert.Equal(t, "sys", client.chats[0].System)
	assert.Equal(t, 0.3, client.chats[0].Temperature)
}

func TestAICompleteErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewAIWithKey("", nil, AIOptions{}).Complete(ctx, ChatRequest{Model: "gpt-4o", Prompt: "x"})
	assert.ErrorContains(t, err, "API key")

	client := &fakeChatClient{}
	_, err = NewAI(client, nil, AIOptions{}).Complete(ctx, ChatRequest{Model: "gpt 4o", Prompt: "x"})
	assert.ErrorContains(t, err, "invalid model")
	assert.Empty(t, client.chats)

	boom := errors.New("connection reset")
	_, err = NewAI(&fakeChatClient{chatErr: boom}, nil, AIOptions{}).Complete(ctx, ChatRequest{Model: "gpt-4o", Prompt: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestAITranscribeSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.mp3")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	client := &fakeChatClient{}
	ai := NewAI(client, nil, AIOptions{WhisperLanguage: "pt"})

	text, err := ai.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []string{"pt"}, client.languages)
}

func TestAITranscribeSplitsLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 25)), 0644))

	ffmpeg := &fakeFFmpeg{}
	client := &fakeChatClient{}
	ai := NewAI(client, NewAudio(ffmpeg, filepath.Join(dir, "tmp")), AIOptions{WhisperLimit: 10})

	text, err := ai.Transcribe(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"talk_chunk_0.mp3", "talk_chunk_1.mp3", "talk_chunk_2.mp3"}, client.transcribed)
	assert.Equal(t, "talk_chunk_0.mp3\ntalk_chunk_1.mp3\ntalk_chunk_2.mp3", text)

	// 90.5s over 3 chunks rounds up to 31s segments
	require.Len(t, ffmpeg.calls, 4)
	assert.Contains(t, ffmpeg.calls[2], "-ss 31 -t 31")

	for _, chunk := range client.transcribed {
		assert.NoFileExists(t, filepath.Join(dir, "tmp", chunk))
	}
}

func TestAITranscribeLargeFileWithoutSplitter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.mp3")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 25)), 0644))

	_, err := NewAI(&fakeChatClient{}, nil, AIOptions{WhisperLimit: 10}).Transcribe(context.Background(), path)
	assert.ErrorContains(t, err, "no splitter")
}

func TestAudioExtract(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := &fakeFFmpeg{}

	out, err := NewAudio(ffmpeg, dir).Extract(context.Background(), "/uploads/clip.mov")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip_audio.mp3"), out)
	assert.FileExists(t, out)
	assert.Contains(t, ffmpeg.calls[0], "-vn")
}
