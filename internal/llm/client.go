// Package llm wraps the text-completion provider behind a small interface so
// pipeline stages can be tested with stubs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"papervid/internal/config"
)

var ErrAPIKeyNotSet = errors.New("LLM API key not set: set LLM_API_KEY or OPENAI_API_KEY")

// Completer issues one text completion. Implementations must honor the
// context deadline.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	client       openai.Client
	baseURL      string
	defaultModel string
	maxTokens    int
	temperature  float64
	timeout      time.Duration
}

func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		client:       openai.NewClient(opts...),
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		timeout:      timeout,
	}, nil
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return "", errors.New("LLM model is required but was not provided")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("LLM request to %s failed: %w", PathOnly(c.baseURL), sanitizeErr(err))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("LLM response missing content")
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("LLM response missing content")
	}
	return content, nil
}

func sanitizeErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %s", apiErr.StatusCode, apiErr.Message)
	}
	return err
}

// PathOnly strips scheme, host credentials and query string from an endpoint
// URL so surfaced errors never leak secrets.
func PathOnly(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
