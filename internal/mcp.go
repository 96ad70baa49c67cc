package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		AppName+"-server",
		version,
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_youtube_metadata",
		mcp.WithDescription("Extract video metadata including caption availability. Check 'Has Captions' to decide whether get_youtube_transcript needs allow_whisper."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL (youtube.com/watch?v=... or youtu.be/...)"),
			mcp.Required(),
		),
	), s.handleGetMetadata)

	s.mcpServer.AddTool(mcp.NewTool("get_youtube_transcript",
		mcp.WithDescription("Get the transcript of a YouTube video. Captions are FREE. With allow_whisper the audio is transcribed with OpenAI Whisper when no captions exist (PAID); ask the user before enabling it."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL"),
			mcp.Required(),
		),
		mcp.WithBoolean("allow_whisper",
			mcp.Description("Fall back to paid Whisper transcription"),
		),
	), s.handleGetTranscript)

	s.mcpServer.AddTool(mcp.NewTool("youtube_to_blog",
		mcp.WithDescription("Write a professional blog post from a YouTube video transcript. Posts are cached by transcript content."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL"),
			mcp.Required(),
		),
		mcp.WithBoolean("allow_whisper",
			mcp.Description("Fall back to paid Whisper transcription"),
		),
		mcp.WithBoolean("regenerate",
			mcp.Description("Ignore the cached post and write a new one"),
		),
	), s.handleYouTubeToBlog)

	s.mcpServer.AddTool(mcp.NewTool("survey_insights",
		mcp.WithDescription("Run the survey ETL on an .xlsx file and return strategic insights from the frequency tables."),
		mcp.WithString("path",
			mcp.Description("Path to the survey spreadsheet (.xlsx)"),
			mcp.Required(),
		),
	), s.handleSurveyInsights)

	s.mcpServer.AddTool(mcp.NewTool("multichannel_content",
		mcp.WithDescription("Write a LinkedIn post, a blog article, an executive one page and a press release from survey insights."),
		mcp.WithString("insights",
			mcp.Description("Insight text, usually the output of survey_insights"),
			mcp.Required(),
		),
	), s.handleMultichannelContent)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func (s *MCPServer) handleGetMetadata(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	slog.Info("mcp: get_youtube_metadata", slog.String("url", url))

	metadata, err := s.app.Metadata(ctx, url)
	if err != nil {
		slog.Error("mcp: metadata failed", slog.Any("error", err))
		return mcp.NewToolResultErrorFromErr("metadata error", err), nil
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Title: %s\n", metadata.Title)
	fmt.Fprintf(&buf, "Channel: %s\n", metadata.Channel)
	fmt.Fprintf(&buf, "Duration: %.0f seconds\n", metadata.Duration)
	fmt.Fprintf(&buf, "Description: %s\n", metadata.Description)
	fmt.Fprintf(&buf, "Has Captions: %t\n", metadata.HasCaptions)
	if len(metadata.Tags) > 0 {
		fmt.Fprintf(&buf, "Tags: %s\n", strings.Join(metadata.Tags, ", "))
	}
	if len(metadata.Categories) > 0 {
		fmt.Fprintf(&buf, "Categories: %s\n", strings.Join(metadata.Categories, ", "))
	}
	for _, ch := range metadata.Chapters {
		fmt.Fprintf(&buf, "Chapter (%.0f-%.0f): %s\n", ch.StartTime, ch.EndTime, ch.Title)
	}

	return textResult(buf.String()), nil
}

// transcript resolves captions, or every automatic tier when allowWhisper is set
func (s *MCPServer) transcript(ctx context.Context, url string, allowWhisper bool) (*TranscriptResult, error) {
	if allowWhisper {
		return s.app.ResolveTranscript(ctx, url, nil)
	}
	return s.app.CaptionTranscript(ctx, url)
}

func (s *MCPServer) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	allowWhisper := request.GetBool("allow_whisper", false)
	slog.Info("mcp: get_youtube_transcript", slog.String("url", url), slog.Bool("allow_whisper", allowWhisper))

	result, err := s.transcript(ctx, url, allowWhisper)
	if err != nil {
		slog.Error("mcp: transcript failed", slog.Any("error", err))
		if !allowWhisper && (errors.Is(err, ErrNoCaptions) || errors.Is(err, ErrBlocked)) {
			return mcp.NewToolResultErrorFromErr("no captions available - retry with allow_whisper=true (paid) if the user agrees", err), nil
		}
		return mcp.NewToolResultError(UserMessage(err)), nil
	}

	return textResult(result.Text), nil
}

func (s *MCPServer) handleYouTubeToBlog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	allowWhisper := request.GetBool("allow_whisper", false)
	regenerate := request.GetBool("regenerate", false)
	slog.Info("mcp: youtube_to_blog", slog.String("url", url), slog.Bool("regenerate", regenerate))

	result, err := s.transcript(ctx, url, allowWhisper)
	if err != nil {
		slog.Error("mcp: transcript failed", slog.Any("error", err))
		return mcp.NewToolResultError(UserMessage(err)), nil
	}

	blog, err := s.app.GenerateVideoBlog(ctx, url, result.Text, regenerate)
	if err != nil {
		slog.Error("mcp: blog failed", slog.Any("error", err))
		return mcp.NewToolResultError(UserMessage(err)), nil
	}
	if blog == "" {
		return mcp.NewToolResultError("the model returned a placeholder instead of a blog post, try regenerate=true"), nil
	}
	return textResult(blog), nil
}

func (s *MCPServer) handleSurveyInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required and must be a string"), nil
	}
	slog.Info("mcp: survey_insights", slog.String("path", path))

	survey, err := s.app.RunSurvey(ctx, path)
	if err != nil {
		slog.Error("mcp: survey etl failed", slog.Any("error", err))
		return mcp.NewToolResultErrorFromErr("survey etl failed", err), nil
	}

	insights, err := s.app.GenerateInsights(ctx, survey.JSON)
	if err != nil {
		slog.Error("mcp: insights failed", slog.Any("error", err))
		return mcp.NewToolResultError(UserMessage(err)), nil
	}
	if insights == "" {
		return mcp.NewToolResultError("the model returned a placeholder instead of insights"), nil
	}
	return textResult(insights), nil
}

func (s *MCPServer) handleMultichannelContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	insights, err := request.RequireString("insights")
	if err != nil {
		return mcp.NewToolResultError("insights parameter is required and must be a string"), nil
	}
	slog.Info("mcp: multichannel_content", slog.Int("chars", len(insights)))

	content, err := s.app.GenerateContent(ctx, insights)
	if err != nil {
		slog.Error("mcp: content failed", slog.Any("error", err))
		return mcp.NewToolResultError(UserMessage(err)), nil
	}
	return textResult(content.Markdown()), nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(context.Background())
		}()
		slog.Info("mcp: serving http", slog.String("addr", addr))
		return httpServer.Start(addr)
	}

	slog.Info("mcp: serving stdio")
	return server.ServeStdio(s.mcpServer)
}

// Server returns the underlying MCP server
func (s *MCPServer) Server() *server.MCPServer {
	return s.mcpServer
}
