// Package ai wraps the OpenAI-compatible chat completion API. The
// default target is a local Ollama instance, but any endpoint that
// speaks the protocol works.
package ai

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/pkg/errors"
)

// Sentinel errors for the calling pipeline to branch on.
var (
	ErrUnavailable       = errors.New("ai service unavailable")
	ErrModelNotFound     = errors.New("model not found")
	ErrMalformedResponse = errors.New("malformed model response")
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

// Client is a thin wrapper over the chat completion endpoint with a
// per-request timeout and a stable error taxonomy.
type Client struct {
	client openai.Client
	opts   Options
	logger *log.Logger
}

// NewClient builds a completion client for the configured endpoint.
func NewClient(opts Options, logger *log.Logger) *Client {
	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
	)
	return &Client{client: client, opts: opts, logger: logger}
}

// GenerateRequest carries the prompts for one completion call.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// GenerateResult is the model output plus usage accounting.
type GenerateResult struct {
	Text       string
	Model      string
	TokenCount int64
}

// Generate runs one chat completion. The configured timeout bounds the
// call; errors map onto the package sentinels so callers can decide
// between fallback and hard failure.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Model:       c.opts.Model,
		Temperature: param.Opt[float64]{Value: c.opts.Temperature},
		MaxTokens:   param.Opt[int64]{Value: c.opts.MaxTokens},
	})
	if err != nil {
		return nil, classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, errors.Wrap(ErrMalformedResponse, "no choices returned")
	}

	result := &GenerateResult{
		Text:       completion.Choices[0].Message.Content,
		Model:      completion.Model,
		TokenCount: completion.Usage.TotalTokens,
	}

	c.logger.Debug("completion finished",
		"model", result.Model,
		"tokens", result.TokenCount,
		"duration", time.Since(start))

	return result, nil
}

// CheckConnection probes the endpoint by listing models.
func (c *Client) CheckConnection(ctx context.Context) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	if _, err := c.client.Models.List(ctx); err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError maps transport and API failures onto the sentinels.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 404 {
			return errors.Wrap(ErrModelNotFound, apiErr.Error())
		}
		return errors.Wrap(ErrUnavailable, apiErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "connection refused") {
		return errors.Wrap(ErrUnavailable, err.Error())
	}

	return err
}
