// Package web serves the browser UI for the survey and YouTube flows.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/ilumeo/aimarketing/internal"
	"github.com/ilumeo/aimarketing/internal/etl"
)

//go:embed templates/*.html
var templateFS embed.FS

// Backend is the part of internal.App the UI drives
type Backend interface {
	RunSurvey(ctx context.Context, xlsxPath string) (*etl.Result, error)
	GenerateInsights(ctx context.Context, etlJSON string) (string, error)
	GenerateContent(ctx context.Context, insights string) (internal.ChannelContent, error)
	ResolveTranscript(ctx context.Context, videoURL string, upload *internal.Upload) (*internal.TranscriptResult, error)
	TranscribeUpload(ctx context.Context, upload *internal.Upload) (*internal.TranscriptResult, error)
	GenerateBlog(ctx context.Context, transcript string, regenerate bool) (string, error)
	GenerateVideoBlog(ctx context.Context, videoURL, transcript string, regenerate bool) (string, error)
	SurveyOutputPath() string
}

// Options configures NewServer
type Options struct {
	TempDir     string
	MaxUploadMB int
	SessionTTL  time.Duration
}

// Server is the fiber app plus the per-browser state
type Server struct {
	app      *fiber.App
	backend  Backend
	sessions *internal.Sessions
	store    *session.Store
	page     *template.Template
	opts     Options
}

// NewServer builds the routes
func NewServer(backend Backend, opts Options) (*Server, error) {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 200
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}

	page, err := template.New("index.html").Funcs(templateFuncs()).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		backend:  backend,
		sessions: internal.NewSessions(opts.SessionTTL),
		store: session.New(session.Config{
			Expiration:     opts.SessionTTL,
			CookieHTTPOnly: true,
			CookieSameSite: "Lax",
		}),
		page: page,
		opts: opts,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               internal.AppName,
		BodyLimit:             opts.MaxUploadMB << 20,
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Minute,
		WriteTimeout:          30 * time.Minute,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger)

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/healthz", s.handleHealth)

	survey := s.app.Group("/survey")
	survey.Post("/", s.handleSurveyUpload)
	survey.Post("/insights", s.handleInsights)
	survey.Post("/content", s.handleContent)
	survey.Post("/reset", s.handleSurveyReset)
	survey.Get("/result.json", s.handleSurveyJSON)

	yt := s.app.Group("/youtube")
	yt.Post("/transcribe", s.handleTranscribe)
	yt.Post("/blog", s.handleBlog)
	yt.Post("/clear", s.handleYouTubeClear)
}

// App exposes the fiber app, used by tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("web: listening", slog.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("web: shutting down")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	slog.Debug("web: request",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", c.Response().StatusCode()),
		slog.Duration("took", time.Since(start)))
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("web: handler failed", slog.String("path", c.Path()), slog.Any("error", err))
	}
	return c.Status(code).SendString(err.Error())
}

// session returns the registry entry bound to the browser's session cookie
func (s *Server) session(c *fiber.Ctx) (*internal.Session, error) {
	sess, err := s.store.Get(c)
	if err != nil {
		return nil, err
	}
	// Save releases sess, so the id is read first
	id := sess.ID()
	sess.Set("seen", time.Now().Unix())
	if err := sess.Save(); err != nil {
		return nil, err
	}
	return s.sessions.Get(id), nil
}
