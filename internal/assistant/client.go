package assistant

import (
	"context"
	"fmt"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"
	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/config"
	"github.com/teampulsehq/teampulse/internal/store"
)

// DisabledText is returned by every call when no API key is configured.
const DisabledText = "AI functionality is disabled because the API key is not configured."

// Runtime interface for the text-generation backend (allows mocking in tests)
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close()
}

// runtimeAdapter wraps api.Runtime to implement Runtime interface
type runtimeAdapter struct {
	rt *api.Runtime
}

func (r *runtimeAdapter) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeAdapter) Close() {
	r.rt.Close()
}

func newRuntime(cfg *config.Config) (Runtime, error) {
	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Agent.Model,
			MaxTokens: cfg.Agent.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ProjectRoot:   cfg.Agent.Workspace,
		ModelFactory:  provider,
		SystemPrompt:  "You are the AI assistant of a small team collaboration tool.",
		MaxIterations: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return &runtimeAdapter{rt: rt}, nil
}

// Client is the text-generation collaborator: three request/response calls,
// each taking a structured project snapshot and returning plain text.
type Client struct {
	runtime Runtime
	log     *zap.Logger
}

// New creates a Client. With no API key configured the client stays in
// disabled mode: every call deterministically returns DisabledText.
func New(cfg *config.Config, log *zap.Logger) (*Client, error) {
	if cfg.Provider.APIKey == "" {
		log.Warn("no API key configured, assistant disabled")
		return &Client{log: log}, nil
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{runtime: rt, log: log}, nil
}

// NewWithRuntime creates a Client over an existing runtime (for testing).
func NewWithRuntime(rt Runtime, log *zap.Logger) *Client {
	return &Client{runtime: rt, log: log}
}

func (c *Client) Close() {
	if c.runtime != nil {
		c.runtime.Close()
	}
}

func (c *Client) generate(ctx context.Context, prompt, sessionID string) (string, error) {
	if c.runtime == nil {
		return DisabledText, nil
	}

	resp, err := c.runtime.Run(ctx, api.Request{
		Prompt:    prompt,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || resp.Result == nil {
		return "", nil
	}
	return resp.Result.Output, nil
}

// ProgressReport returns a narrative project report in lightweight markup.
func (c *Client) ProgressReport(ctx context.Context, tasks []store.Task, users []store.User) (string, error) {
	return c.generate(ctx, progressReportPrompt(tasks, users), "report")
}

// ChatReply answers a single user message in project context. No conversation
// history is sent.
func (c *Client) ChatReply(ctx context.Context, userText string, tasks []store.Task, users []store.User) (string, error) {
	return c.generate(ctx, chatReplyPrompt(userText, tasks, users), "chat")
}

// ProactiveAlerts returns a 2-3 line digest, each line prefixed "Insight:" or
// "Alert:".
func (c *Client) ProactiveAlerts(ctx context.Context, tasks []store.Task, users []store.User) (string, error) {
	return c.generate(ctx, proactiveAlertsPrompt(tasks, users), "alerts")
}
