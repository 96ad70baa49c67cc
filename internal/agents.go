package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultPlaceholders are non-answers the model sometimes returns instead of content
var DefaultPlaceholders = []string{
	"[conteúdo detalhado acima]",
	"[conteúdo acima]",
	"[conteúdo detalhado]",
	"[conteúdo]",
}

// Completer runs a single chat completion
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Agent is a persona sent as the system prompt
type Agent struct {
	Role      string
	Goal      string
	Backstory string
}

// SystemPrompt renders the persona
func (a Agent) SystemPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.\n", a.Role)
	if a.Goal != "" {
		fmt.Fprintf(&sb, "Your goal: %s\n", a.Goal)
	}
	if a.Backstory != "" {
		sb.WriteString(a.Backstory)
	}
	return strings.TrimSpace(sb.String())
}

// Task is one templated request
type Task struct {
	Name           string // prompt template name
	Heading        string
	ExpectedOutput string
}

// InsightAgent analyses survey tables
var InsightAgent = Agent{
	Role: "Senior Market Analyst",
	Goal: "Produce strategic insights from survey frequency tables",
	Backstory: "You have years of experience in market research and consumer behaviour. " +
		"You read frequency tables, cross questions and turn numbers into decisions for brands.",
}

// ContentAgent writes channel copy from insights
var ContentAgent = Agent{
	Role: "Multichannel Content Specialist",
	Goal: "Turn research insights into channel-ready content",
	Backstory: "You write for LinkedIn, corporate blogs, executive audiences and the press. " +
		"Every text is ready to publish, with no comments about how it was written.",
}

// VideoBlogAgent writes a blog post from a transcript
var VideoBlogAgent = Agent{
	Role: "Institutional Content Writer",
	Goal: "Write professional blog posts for a market research brand",
}

var insightTask = Task{
	Name:           PromptInsights,
	Heading:        "Insights",
	ExpectedOutput: "Deep strategic insights in markdown, with concrete numbers.",
}

// ContentTasks are the four channel texts in output order
var ContentTasks = []Task{
	{Name: PromptLinkedIn, Heading: "LinkedIn", ExpectedOutput: "A LinkedIn post ready to publish."},
	{Name: PromptBlog, Heading: "Blog", ExpectedOutput: "A complete blog article in markdown."},
	{Name: PromptOnePage, Heading: "One Page Executiva", ExpectedOutput: "An executive one page in markdown."},
	{Name: PromptRelease, Heading: "Release", ExpectedOutput: "A press release ready to send."},
}

var videoBlogTask = Task{
	Name:           PromptVideoBlog,
	Heading:        "Blog",
	ExpectedOutput: "A blog post in markdown.",
}

// Crew runs tasks for one agent
type Crew struct {
	Agent       Agent
	Completer   Completer
	Prompts     *PromptManager
	Model       string
	Temperature float64
	Language    string
	Concurrency int
	Denylist    []string
}

// Run executes every task against the same input and returns the answers in task order.
// At most Concurrency tasks are in flight.
func (c *Crew) Run(ctx context.Context, tasks []Task, data PromptData) ([]string, error) {
	results := make([]string, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	limit := c.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, task := range tasks {
		g.Go(func() error {
			out, err := c.runTask(ctx, task, data)
			if err != nil {
				return fmt.Errorf("%s: %w", task.Heading, err)
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Crew) runTask(ctx context.Context, task Task, data PromptData) (string, error) {
	if data.Language == "" {
		data.Language = c.Language
	}
	prompt, err := c.Prompts.Render(task.Name, data)
	if err != nil {
		return "", err
	}
	if task.ExpectedOutput != "" {
		prompt += "\n\nExpected output: " + task.ExpectedOutput
	}

	slog.Debug("running task", slog.String("agent", c.Agent.Role), slog.String("task", task.Name))

	answer, err := c.Completer.Complete(ctx, ChatRequest{
		Model:       c.Model,
		System:      c.Agent.SystemPrompt(),
		Prompt:      prompt,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", err
	}

	filtered := FilterPlaceholder(answer, c.Denylist)
	if filtered == "" && strings.TrimSpace(answer) != "" {
		slog.Warn("model returned a placeholder", slog.String("task", task.Name), slog.String("answer", answer))
	}
	return filtered, nil
}

// FilterPlaceholder trims text and returns "" when it is a denylisted placeholder.
// Matching is case-insensitive against DefaultPlaceholders and extra.
func FilterPlaceholder(text string, extra []string) string {
	text = strings.TrimSpace(text)
	for _, list := range [][]string{DefaultPlaceholders, extra} {
		for _, p := range list {
			if p != "" && strings.EqualFold(text, strings.TrimSpace(p)) {
				return ""
			}
		}
	}
	return text
}

// ChannelContent holds the four channel texts
type ChannelContent struct {
	LinkedIn string `json:"linkedin"`
	Blog     string `json:"blog"`
	OnePage  string `json:"one_page"`
	Release  string `json:"release"`
}

// channelContentFrom maps Crew results in ContentTasks order
func channelContentFrom(results []string) ChannelContent {
	get := func(i int) string {
		if i < len(results) {
			return results[i]
		}
		return ""
	}
	return ChannelContent{
		LinkedIn: get(0),
		Blog:     get(1),
		OnePage:  get(2),
		Release:  get(3),
	}
}

// Markdown assembles the sections separated by horizontal rules
func (cc ChannelContent) Markdown() string {
	sections := []string{cc.LinkedIn, cc.Blog, cc.OnePage, cc.Release}
	parts := make([]string, 0, len(sections))
	for i, body := range sections {
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", ContentTasks[i].Heading, strings.TrimSpace(body)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
