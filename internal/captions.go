package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"
)

// Caption retrieval over plain HTTP.
// Primary:  watch page ytInitialPlayerResponse → captionTracks → timedtext XML
// Fallback: ANDROID Innertube /player → captionTracks

const (
	youtubeBaseURL   = "https://www.youtube.com"
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
	browserUA        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "
)

// CaptionSource returns the caption text of a video in one of the preferred languages.
// Implementations return ErrNoCaptions or ErrBlocked for the expected failures.
type CaptionSource interface {
	Captions(ctx context.Context, videoID string, langs []string) (string, error)
}

// CaptionFetcher reads captions straight from youtube.com
type CaptionFetcher struct {
	client  *http.Client
	baseURL string
}

// NewCaptionFetcher creates a caption fetcher. A nil client gets a 30s default.
func NewCaptionFetcher(client *http.Client) *CaptionFetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 15 * time.Second,
			},
		}
	}
	return &CaptionFetcher{client: client, baseURL: youtubeBaseURL}
}

// WithBaseURL points the fetcher at another host, used by tests
func (f *CaptionFetcher) WithBaseURL(baseURL string) *CaptionFetcher {
	f.baseURL = strings.TrimRight(baseURL, "/")
	return f
}

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// timedText covers both the legacy <transcript><text> format and srv3 <timedtext><body><p>
type timedText struct {
	Lines      []timedLine `xml:"text"`
	Paragraphs []timedPara `xml:"body>p"`
}

type timedLine struct {
	Text string `xml:",chardata"`
}

type timedPara struct {
	Text     string      `xml:",chardata"`
	Segments []timedLine `xml:"s"`
}

// Captions implements CaptionSource
func (f *CaptionFetcher) Captions(ctx context.Context, videoID string, langs []string) (string, error) {
	text, err := f.captionsViaWatchPage(ctx, videoID, langs)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, ErrBlocked) || ctx.Err() != nil {
		return "", err
	}
	slog.Debug("captions: watch page failed, trying player",
		slog.String("id", videoID), slog.Any("error", err))

	text, err = f.captionsViaPlayer(ctx, videoID, langs)
	if err == nil || errors.Is(err, ErrBlocked) || errors.Is(err, ErrNoCaptions) || ctx.Err() != nil {
		return text, err
	}
	return "", fmt.Errorf("%w: %v", ErrNoCaptions, err)
}

// captionsViaWatchPage scrapes ytInitialPlayerResponse out of the watch page scripts
func (f *CaptionFetcher) captionsViaWatchPage(ctx context.Context, videoID string, langs []string) (string, error) {
	body, err := f.fetch(ctx, http.MethodGet, f.baseURL+"/watch?v="+videoID, nil, map[string]string{
		"User-Agent":      browserUA,
		"Accept-Language": "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing watch page: %w", err)
	}

	var jsonData []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		script := s.Text()
		idx := strings.Index(script, ytInitialPlayerResponseMarker)
		if idx < 0 {
			return true
		}
		jsonData = extractJSON([]byte(script[idx+len(ytInitialPlayerResponseMarker):]))
		return jsonData == nil
	})
	if jsonData == nil {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}

	var player playerResponse
	if err := json.Unmarshal(jsonData, &player); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return f.captionsFromPlayer(ctx, player, langs)
}

// captionsViaPlayer asks the ANDROID Innertube client for caption tracks
func (f *CaptionFetcher) captionsViaPlayer(ctx context.Context, videoID string, langs []string) (string, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	body, err := f.fetch(ctx, http.MethodPost, f.baseURL+"/youtubei/v1/player?prettyPrint=false", reqBody, map[string]string{
		"Content-Type":             "application/json",
		"User-Agent":               ytAndroidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": ytAndroidVersion,
	})
	if err != nil {
		return "", fmt.Errorf("android innertube: %w", err)
	}

	var player playerResponse
	if err := json.Unmarshal(body, &player); err != nil {
		return "", fmt.Errorf("decode player: %w", err)
	}
	return f.captionsFromPlayer(ctx, player, langs)
}

func (f *CaptionFetcher) captionsFromPlayer(ctx context.Context, player playerResponse, langs []string) (string, error) {
	if player.Captions == nil {
		if ps := player.PlayabilityStatus; ps != nil && ps.Status == "LOGIN_REQUIRED" {
			return "", fmt.Errorf("%w: %s", ErrBlocked, ps.Reason)
		}
		return "", ErrNoCaptions
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", ErrNoCaptions
	}
	track, ok := pickBestTrack(tracks, langs)
	if !ok {
		return "", fmt.Errorf("%w: no usable track in %s", ErrNoCaptions, strings.Join(langs, ", "))
	}

	trackURL := track.BaseURL
	if strings.HasPrefix(trackURL, "/") {
		trackURL = f.baseURL + trackURL
	}
	body, err := f.fetch(ctx, http.MethodGet, trackURL, nil, map[string]string{"User-Agent": browserUA})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("%w: empty timedtext response", ErrNoCaptions)
	}
	text, err := parseTimedText(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCaptions, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty caption track", ErrNoCaptions)
	}
	return text, nil
}

// fetch performs a request with exponential backoff on 5xx responses.
// 403 and 429 are reported as ErrBlocked without retrying.
func (f *CaptionFetcher) fetch(ctx context.Context, method, target string, body []byte, headers map[string]string) ([]byte, error) {
	operation := func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode))
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(30*time.Second))
}

// needsPoToken reports whether a caption track URL only works inside a browser
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if strings.EqualFold(t.LanguageCode, lang) && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if strings.EqualFold(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	// 3. Any track sharing a base language with a preference (pt-BR → pt)
	for _, lang := range langs {
		base, _, _ := strings.Cut(lang, "-")
		for _, t := range usable {
			trackBase, _, _ := strings.Cut(t.LanguageCode, "-")
			if strings.EqualFold(trackBase, base) {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

// parseTimedText flattens a timedtext XML document into one line of text
func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var parts []string
	add := func(s string) {
		s = strings.Join(strings.Fields(html.UnescapeString(s)), " ")
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, line := range tt.Lines {
		add(line.Text)
	}
	for _, p := range tt.Paragraphs {
		if len(p.Segments) == 0 {
			add(p.Text)
			continue
		}
		var sb strings.Builder
		for _, s := range p.Segments {
			sb.WriteString(s.Text)
		}
		add(sb.String())
	}
	return strings.Join(parts, " "), nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
