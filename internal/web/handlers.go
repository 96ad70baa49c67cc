package web

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ilumeo/aimarketing/internal"
)

const (
	flashInfo    = "info"
	flashWarning = "warning"
	flashError   = "error"
)

type pageData struct {
	FlashKind string
	Flash     string

	HasSurvey      bool
	Respondents    int
	ETLLogs        []string
	Simple         []namedTable
	Multi          []namedTable
	Matrix         []namedTable
	Scores         []namedTable
	Insights       string
	Content        string
	CanInsights    bool
	CanContent     bool
	InsightsLocked bool

	YouTubeURL       string
	Transcript       string
	TranscriptSource string
	Blog             string
	CanBlog          bool
	UploadAccept     string
}

func (s *Server) back(c *fiber.Ctx) error {
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	kind, msg := sess.TakeFlash()
	data := pageData{
		FlashKind:      kind,
		Flash:          msg,
		HasSurvey:      sess.ETLJSON != "",
		ETLLogs:        sess.ETLLogs,
		Insights:       sess.Insights,
		Content:        sess.Content,
		CanInsights:    sess.CanGenerateInsights(),
		CanContent:     sess.CanGenerateContent(),
		InsightsLocked: sess.InsightsGenerated,

		YouTubeURL: sess.YouTubeURL,
		Transcript: sess.Transcript,
		Blog:       sess.Blog,
		CanBlog:    sess.CanGenerateBlog(),
	}
	if sess.Transcript != "" {
		data.TranscriptSource = sess.TranscriptSource.String()
	}
	if sess.Survey != nil {
		data.Respondents = sess.Survey.Respondents
		data.Simple = simpleTables(sess.Survey.Simple)
		data.Multi = simpleTables(sess.Survey.Multi)
		data.Matrix = matrixTables(sess.Survey.Matrix)
		data.Scores = matrixTables(sess.Survey.Scores)
	}
	sess.Unlock()

	exts := make([]string, len(internal.UploadExtensions))
	for i, e := range internal.UploadExtensions {
		exts[i] = "." + e
	}
	data.UploadAccept = strings.Join(exts, ",")

	c.Type("html", "utf-8")
	return s.page.Execute(c.Response().BodyWriter(), data)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "sessions": s.sessions.Len()})
}

// saveUpload writes a multipart file into the temp dir and returns its path
func (s *Server) saveUpload(c *fiber.Ctx, field string, allowed []string) (*internal.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	if !slices.Contains(allowed, ext) {
		return nil, fmt.Errorf("%w: %s", internal.ErrUnsupportedMedia, fh.Filename)
	}
	if err := internal.EnsureDirs(s.opts.TempDir); err != nil {
		return nil, err
	}
	path := filepath.Join(s.opts.TempDir, uuid.NewString()+"."+ext)
	if err := c.SaveFile(fh, path); err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	return &internal.Upload{Name: fh.Filename, Path: path}, nil
}

func removeUpload(u *internal.Upload) {
	if u == nil {
		return
	}
	if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
		slog.Warn("web: removing upload", slog.String("path", u.Path), slog.Any("error", err))
	}
}

func (s *Server) handleSurveyUpload(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	upload, err := s.saveUpload(c, "file", []string{"xlsx"})
	if err != nil {
		sess.SetFlash(flashError, "Upload an .xlsx survey file.")
		return s.back(c)
	}
	if upload == nil {
		sess.SetFlash(flashWarning, "Choose a survey file first.")
		return s.back(c)
	}
	defer removeUpload(upload)

	result, err := s.backend.RunSurvey(c.UserContext(), upload.Path)
	if err != nil {
		slog.Error("web: survey etl failed", slog.Any("error", err))
		sess.SetFlash(flashError, "ETL failed: "+err.Error())
		return s.back(c)
	}

	sess.SetSurvey(result)
	sess.SetFlash(flashInfo, fmt.Sprintf("Survey processed: %d respondents.", result.Respondents))
	return s.back(c)
}

func (s *Server) handleInsights(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	switch {
	case sess.ETLJSON == "":
		sess.SetFlash(flashWarning, "Upload a survey before generating insights.")
		return s.back(c)
	case sess.InsightsGenerated:
		sess.SetFlash(flashInfo, "Insights were already generated for this survey.")
		return s.back(c)
	}

	sess.AuthorizeInsights = true
	insights, err := s.backend.GenerateInsights(c.UserContext(), sess.ETLJSON)
	if err != nil {
		sess.AuthorizeInsights = false
		slog.Error("web: insights failed", slog.Any("error", err))
		sess.SetFlash(flashError, internal.UserMessage(err))
		return s.back(c)
	}
	if insights == "" {
		sess.AuthorizeInsights = false
		sess.SetFlash(flashWarning, "The model returned a placeholder instead of insights. Try again.")
		return s.back(c)
	}

	sess.Insights = insights
	sess.InsightsGenerated = true
	sess.SetFlash(flashInfo, "Insights generated.")
	return s.back(c)
}

func (s *Server) handleContent(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	if !sess.CanGenerateContent() {
		sess.SetFlash(flashWarning, "Generate the insights first.")
		return s.back(c)
	}

	sess.AuthorizeContent = true
	content, err := s.backend.GenerateContent(c.UserContext(), sess.Insights)
	if err != nil {
		sess.AuthorizeContent = false
		slog.Error("web: content failed", slog.Any("error", err))
		sess.SetFlash(flashError, internal.UserMessage(err))
		return s.back(c)
	}

	sess.Content = content.Markdown()
	sess.SetFlash(flashInfo, "Content generated.")
	return s.back(c)
}

func (s *Server) handleSurveyReset(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	sess.Reset()
	return s.back(c)
}

func (s *Server) handleSurveyJSON(c *fiber.Ctx) error {
	path := s.backend.SurveyOutputPath()
	if path == "" || !internal.FileExists(path) {
		return fiber.ErrNotFound
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="survey_result.json"`)
	return c.SendFile(path)
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	videoURL := strings.TrimSpace(c.FormValue("url"))
	mode := c.FormValue("mode", "transcribe")

	upload, err := s.saveUpload(c, "media", internal.UploadExtensions)
	if err != nil {
		sess.SetFlash(flashError, internal.UserMessage(err))
		return s.back(c)
	}
	defer removeUpload(upload)

	var result *internal.TranscriptResult
	switch {
	case videoURL == "" && upload != nil:
		result, err = s.backend.TranscribeUpload(c.UserContext(), upload)
	case !internal.ValidateYouTubeURL(videoURL):
		sess.SetFlash(flashError, internal.UserMessage(internal.ErrInvalidURL))
		return s.back(c)
	default:
		if videoURL != sess.YouTubeURL {
			sess.ClearYouTube()
			sess.YouTubeURL = videoURL
		}
		result, err = s.backend.ResolveTranscript(c.UserContext(), videoURL, upload)
	}
	if err != nil {
		kind := flashError
		if errors.Is(err, internal.ErrNeedsUpload) {
			kind = flashWarning
		} else {
			slog.Error("web: transcript failed", slog.Any("error", err))
		}
		sess.SetFlash(kind, internal.UserMessage(err))
		return s.back(c)
	}

	if videoURL == "" {
		sess.YouTubeURL = ""
	}
	sess.Transcript = result.Text
	sess.TranscriptSource = result.Source
	sess.Blog = ""

	if mode != "all" {
		sess.SetFlash(flashInfo, "Transcript ready ("+result.Source.String()+").")
		return s.back(c)
	}
	return s.writeBlog(c, sess, false)
}

func (s *Server) handleBlog(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	if !sess.CanGenerateBlog() {
		sess.SetFlash(flashWarning, "Transcribe a video first.")
		return s.back(c)
	}
	return s.writeBlog(c, sess, c.FormValue("regenerate") == "1")
}

// writeBlog runs with the session locked
func (s *Server) writeBlog(c *fiber.Ctx, sess *internal.Session, regenerate bool) error {
	var (
		blog string
		err  error
	)
	if sess.YouTubeURL != "" {
		blog, err = s.backend.GenerateVideoBlog(c.UserContext(), sess.YouTubeURL, sess.Transcript, regenerate)
	} else {
		blog, err = s.backend.GenerateBlog(c.UserContext(), sess.Transcript, regenerate)
	}
	if err != nil {
		slog.Error("web: blog failed", slog.Any("error", err))
		sess.SetFlash(flashError, internal.UserMessage(err))
		return s.back(c)
	}
	if blog == "" {
		sess.SetFlash(flashWarning, "The model returned a placeholder instead of a post. Use \"Generate again\".")
		return s.back(c)
	}
	sess.Blog = blog
	sess.SetFlash(flashInfo, "Blog post ready.")
	return s.back(c)
}

func (s *Server) handleYouTubeClear(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	sess.ClearYouTube()
	return s.back(c)
}
