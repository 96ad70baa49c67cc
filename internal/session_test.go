package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ilumeo/aimarketing/internal/etl"
)

func surveyResult() *etl.Result {
	r := etl.NewResult()
	r.Respondents = 10
	r.JSON = `{"respondents":10}`
	r.Logs = []string{"parsed 10 rows"}
	return r
}

func TestSessionGating(t *testing.T) {
	s := newSession("id")

	assert.False(t, s.CanGenerateInsights())
	assert.False(t, s.CanGenerateContent())
	assert.False(t, s.CanGenerateBlog())

	s.SetSurvey(surveyResult())
	assert.True(t, s.CanGenerateInsights())
	assert.False(t, s.CanGenerateContent())

	s.Insights = "insights"
	s.InsightsGenerated = true
	assert.False(t, s.CanGenerateInsights(), "insights run once per survey")
	assert.True(t, s.CanGenerateContent())

	s.Transcript = "words"
	assert.True(t, s.CanGenerateBlog())
}

func TestSessionNewSurveyDropsDerivedState(t *testing.T) {
	s := newSession("id")
	s.SetSurvey(surveyResult())
	s.Insights = "old"
	s.InsightsGenerated = true
	s.Content = "old content"
	s.Transcript = "kept"

	s.SetSurvey(surveyResult())
	assert.Empty(t, s.Insights)
	assert.Empty(t, s.Content)
	assert.False(t, s.InsightsGenerated)
	assert.Equal(t, []string{"parsed 10 rows"}, s.ETLLogs)
	assert.Equal(t, "kept", s.Transcript)
}

func TestSessionReset(t *testing.T) {
	s := newSession("id")
	s.SetSurvey(surveyResult())
	s.YouTubeURL = "https://youtu.be/dQw4w9WgXcQ"
	s.Transcript = "words"
	s.TranscriptSource = SourceCaption
	s.Blog = "post"
	s.SetFlash("info", "hi")

	s.Reset()
	assert.Equal(t, "id", s.ID)
	assert.Empty(t, s.ETLJSON)
	assert.Nil(t, s.Survey)
	assert.Empty(t, s.Transcript)
	assert.Equal(t, SourceUnknown, s.TranscriptSource)
	assert.Empty(t, s.Flash)
}

func TestSessionClearYouTubeKeepsSurvey(t *testing.T) {
	s := newSession("id")
	s.SetSurvey(surveyResult())
	s.Transcript = "words"
	s.Blog = "post"

	s.ClearYouTube()
	assert.Empty(t, s.Transcript)
	assert.Empty(t, s.Blog)
	assert.NotEmpty(t, s.ETLJSON)
}

func TestSessionFlashIsOneShot(t *testing.T) {
	s := newSession("id")
	s.SetFlash("warning", "careful")

	kind, msg := s.TakeFlash()
	assert.Equal(t, "warning", kind)
	assert.Equal(t, "careful", msg)

	kind, msg = s.TakeFlash()
	assert.Empty(t, kind)
	assert.Empty(t, msg)
}

func TestSessionsRegistry(t *testing.T) {
	reg := NewSessions(time.Hour)

	a := reg.Get("a")
	assert.Same(t, a, reg.Get("a"))
	assert.NotSame(t, a, reg.Get("b"))

	fresh := reg.Get("")
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, 3, reg.Len())
}

func TestSessionsEvictIdle(t *testing.T) {
	reg := NewSessions(20 * time.Millisecond)
	reg.Get("old")
	time.Sleep(40 * time.Millisecond)

	reg.Get("new")
	assert.Equal(t, 1, reg.Len())
}
