package internal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilumeo/aimarketing/internal/etl"
)

// Session is the per-browser state of the UI
type Session struct {
	mu sync.Mutex

	ID       string
	lastSeen time.Time

	// Survey
	ETLJSON  string
	ETLLogs  []string
	Survey   *etl.Result
	Insights string
	Content  string

	// AI governance
	AuthorizeInsights bool
	InsightsGenerated bool
	AuthorizeContent  bool

	// YouTube
	YouTubeURL       string
	Transcript       string
	TranscriptSource TranscriptSource
	Blog             string

	Flash     string
	FlashKind string // "info", "warning", "error"
}

func newSession(id string) *Session {
	return &Session{ID: id, lastSeen: time.Now()}
}

// Lock serializes actions on one session
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session
func (s *Session) Unlock() { s.mu.Unlock() }

// Reset clears every field except the ID
func (s *Session) Reset() {
	s.resetSurvey()
	s.ClearYouTube()
	s.Flash, s.FlashKind = "", ""
}

func (s *Session) resetSurvey() {
	s.ETLJSON = ""
	s.ETLLogs = nil
	s.Survey = nil
	s.Insights = ""
	s.Content = ""
	s.AuthorizeInsights = false
	s.InsightsGenerated = false
	s.AuthorizeContent = false
}

// ClearYouTube clears only the YouTube keys
func (s *Session) ClearYouTube() {
	s.YouTubeURL = ""
	s.Transcript = ""
	s.TranscriptSource = SourceUnknown
	s.Blog = ""
}

// SetSurvey stores a new ETL result and drops everything derived from the previous one
func (s *Session) SetSurvey(result *etl.Result) {
	s.resetSurvey()
	s.Survey = result
	s.ETLJSON = result.JSON
	s.ETLLogs = result.Logs
}

// CanGenerateInsights reports whether the insights action is enabled
func (s *Session) CanGenerateInsights() bool {
	return s.ETLJSON != "" && !s.InsightsGenerated
}

// CanGenerateContent reports whether the content action is enabled
func (s *Session) CanGenerateContent() bool {
	return s.InsightsGenerated && s.Insights != ""
}

// CanGenerateBlog reports whether the blog action is enabled
func (s *Session) CanGenerateBlog() bool {
	return s.Transcript != ""
}

// SetFlash stores a one-shot message shown on the next page render
func (s *Session) SetFlash(kind, msg string) {
	s.FlashKind, s.Flash = kind, msg
}

// TakeFlash returns and clears the flash message
func (s *Session) TakeFlash() (kind, msg string) {
	kind, msg = s.FlashKind, s.Flash
	s.FlashKind, s.Flash = "", ""
	return kind, msg
}

// Sessions is the in-memory session registry
type Sessions struct {
	mu    sync.Mutex
	items map[string]*Session
	ttl   time.Duration
}

// NewSessions creates a registry. Sessions idle longer than ttl are evicted.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{items: make(map[string]*Session), ttl: ttl}
}

// Get returns the session for id, creating it with defaults when unknown.
// An empty id gets a fresh one.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()

	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.items[id]
	if !ok {
		sess = newSession(id)
		s.items[id] = sess
		slog.Debug("session created", slog.String("id", id))
	}
	sess.lastSeen = time.Now()
	return sess
}

// Len returns the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for id, sess := range s.items {
		if sess.lastSeen.Before(cutoff) {
			delete(s.items, id)
		}
	}
}
