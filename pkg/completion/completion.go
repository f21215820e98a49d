// Package completion wraps the Anthropic Messages API behind a small
// Completer interface used by the tutoring bot and the QA agent.
package completion

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/grovetools/socratic/errors"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of an ordered conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Image is a base64-encoded picture attached to the last user turn.
type Image struct {
	MediaType string
	Base64    string
}

// Request describes a single completion call.
type Request struct {
	System    string
	Turns     []Turn
	Images    []Image
	MaxTokens int
	// Model overrides the client default when set.
	Model string
}

// Completer performs a synchronous completion call.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Available reports whether a credential is configured. When false every
	// Complete call fails with COMPLETION_UNAVAILABLE and callers fall back.
	Available() bool
}

// CompleterFunc adapts a function to the Completer interface. It is always available.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func (f CompleterFunc) Available() bool { return true }

// Config holds Anthropic client configuration.
type Config struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration
	BaseURL    string
}

// Client wraps the Anthropic SDK.
type Client struct {
	cfg       Config
	client    anthropic.Client
	available bool
}

// New creates a client. A missing API key is not an error: the client is
// returned in stub mode and Available reports false.
func New(cfg Config, opts ...option.RequestOption) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}

	c := &Client{cfg: cfg, available: strings.TrimSpace(cfg.APIKey) != ""}
	if !c.available {
		return c
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	c.client = anthropic.NewClient(append(base, opts...)...)
	return c
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool { return c.available }

// Model returns the default model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends the conversation and returns the concatenated text blocks of
// the reply, trimmed.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.available {
		return "", errors.CompletionUnavailable()
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  buildMessages(req),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.CompletionFailed(model, err)
	}

	parts := make([]string, 0, len(resp.Content))
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

func buildMessages(req Request) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.Turns))
	lastUser := -1
	for i, turn := range req.Turns {
		if turn.Role != RoleAssistant {
			lastUser = i
		}
	}

	for i, turn := range req.Turns {
		if turn.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		if i == lastUser {
			for _, img := range req.Images {
				blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, img.Base64))
			}
		}
		blocks = append(blocks, anthropic.NewTextBlock(turn.Content))
		messages = append(messages, anthropic.NewUserMessage(blocks...))
	}
	return messages
}
