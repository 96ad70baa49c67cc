package internal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilumeo/aimarketing/internal/etl"
)

type fakeETL struct {
	result *etl.Result
	err    error
}

func (f *fakeETL) Run(ctx context.Context, xlsxPath string) (*etl.Result, error) {
	return f.result, f.err
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		LLMModel:           "gpt-4o",
		InsightsModel:      "gpt-4o",
		BlogModel:          "gpt-4o-mini",
		ContentLanguage:    "English",
		ContentConcurrency: 2,
		CacheBackend:       "memory",
		CacheTTL:           time.Hour,
		DataDir:            dir,
		TempDir:            filepath.Join(dir, "temp"),
		ETLOutput:          filepath.Join(dir, "survey_result.json"),
		Quiet:              true,
	}
}

func newTestApp(t *testing.T, completer Completer, opts ...AppOption) *App {
	t.Helper()
	opts = append([]AppOption{
		WithCompleter(completer),
		WithCache(NewMemoryCache(time.Hour, 0)),
		WithPromptManager(NewPromptManager("")),
	}, opts...)
	app := NewApp(testConfig(t), opts...)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestGenerateBlogIsCachedByTranscript(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{}
	app := newTestApp(t, completer)

	for range 3 {
		post, err := app.GenerateBlog(ctx, "same transcript", false)
		require.NoError(t, err)
		assert.Equal(t, "answer", post)
	}
	assert.Equal(t, 1, completer.calls())

	_, err := app.GenerateBlog(ctx, "another transcript", false)
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls())

	// regenerate bypasses the cached post
	_, err = app.GenerateBlog(ctx, "same transcript", true)
	require.NoError(t, err)
	assert.Equal(t, 3, completer.calls())

	req := completer.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Zero(t, req.Temperature)
	assert.Contains(t, req.Prompt, "same transcript")
}

func TestGenerateBlogPlaceholderIsNotCached(t *testing.T) {
	ctx := context.Background()
	answers := []string{"[conteúdo]", "a real post"}
	completer := &fakeCompleter{}
	completer.answer = func(ChatRequest) (string, error) {
		a := answers[0]
		answers = answers[1:]
		return a, nil
	}
	app := newTestApp(t, completer)

	post, err := app.GenerateBlog(ctx, "transcript", false)
	require.NoError(t, err)
	assert.Empty(t, post)

	post, err = app.GenerateBlog(ctx, "transcript", false)
	require.NoError(t, err)
	assert.Equal(t, "a real post", post)
}

func TestGenerateBlogEmptyTranscript(t *testing.T) {
	app := newTestApp(t, &fakeCompleter{})
	_, err := app.GenerateBlog(context.Background(), "   ", false)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestGenerateBlogErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	fail := true
	completer := &fakeCompleter{answer: func(ChatRequest) (string, error) {
		if fail {
			return "", ErrQuotaExceeded
		}
		return "post", nil
	}}
	app := newTestApp(t, completer)

	_, err := app.GenerateBlog(ctx, "t", false)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	fail = false
	post, err := app.GenerateBlog(ctx, "t", false)
	require.NoError(t, err)
	assert.Equal(t, "post", post)
}

func TestGenerateInsights(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{answer: func(req ChatRequest) (string, error) {
		return "insight about " + req.Model, nil
	}}
	app := newTestApp(t, completer)

	_, err := app.GenerateInsights(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, completer.calls())

	for range 2 {
		out, err := app.GenerateInsights(ctx, `{"respondents":3}`)
		require.NoError(t, err)
		assert.Equal(t, "insight about gpt-4o", out)
	}
	assert.Equal(t, 1, completer.calls())
	assert.Contains(t, completer.requests[0].System, "Senior Market Analyst")
}

func TestGenerateInsightsPlaceholder(t *testing.T) {
	completer := &fakeCompleter{answer: func(ChatRequest) (string, error) { return "[conteúdo detalhado acima]", nil }}
	app := newTestApp(t, completer)

	out, err := app.GenerateInsights(context.Background(), `{"respondents":3}`)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerateContent(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{}
	app := newTestApp(t, completer)

	_, err := app.GenerateContent(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	content, err := app.GenerateContent(ctx, "insights")
	require.NoError(t, err)
	assert.Equal(t, "answer", content.LinkedIn)
	assert.Equal(t, "answer", content.Release)
	assert.Equal(t, 4, completer.calls())

	// content is not cached
	_, err = app.GenerateContent(ctx, "insights")
	require.NoError(t, err)
	assert.Equal(t, 8, completer.calls())
}

func TestRunSurvey(t *testing.T) {
	ctx := context.Background()

	result := etl.NewResult()
	result.Respondents = 2
	result.JSON = `{"respondents":2}`
	app := newTestApp(t, &fakeCompleter{}, WithETLRunner(&fakeETL{result: result}))

	got, err := app.RunSurvey(ctx, "survey.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Respondents)

	empty := etl.NewResult()
	app = newTestApp(t, &fakeCompleter{}, WithETLRunner(&fakeETL{result: empty}))
	_, err = app.RunSurvey(ctx, "survey.xlsx")
	assert.ErrorIs(t, err, ErrEmptyInput)

	boom := errors.New("bad sheet")
	app = newTestApp(t, &fakeCompleter{}, WithETLRunner(&fakeETL{err: boom}))
	_, err = app.RunSurvey(ctx, "survey.xlsx")
	assert.ErrorIs(t, err, boom)
}

func TestAppResolveTranscriptUsesResolver(t *testing.T) {
	captions := &fakeCaptions{text: "captions text"}
	resolver := NewResolver([]CaptionSource{captions}, nil, nil, nil, NewMemoryCache(time.Hour, 0), []string{"en"})
	app := newTestApp(t, &fakeCompleter{}, WithResolver(resolver))

	result, err := app.ResolveTranscript(context.Background(), testVideoURL, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceCaption, result.Source)

	result, err = app.CaptionTranscript(context.Background(), testVideoURL)
	require.NoError(t, err)
	assert.Equal(t, "captions text", result.Text)
	assert.Equal(t, 1, captions.calls)
}
